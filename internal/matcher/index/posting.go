package index

// QueryID identifies the transient query record. It is never assigned to a
// corpus document.
const QueryID = -1

// Document is one indexed corpus line.
type Document struct {
	ID       int
	Text     string
	Terms    []string
	TermFreq map[string]int
}

// Empty reports whether the document produced no indexable terms.
func (d Document) Empty() bool {
	return len(d.TermFreq) == 0
}

// Record is a query indexed against a corpus without becoming part of it.
// DocFreq is the query's view of document frequency: corpus DF for terms the
// corpus knows, 1 for terms seen only in the query.
type Record struct {
	Document
	DocFreq map[string]int
}

// Posting records how often a term occurs in one document.
type Posting struct {
	DocID     int
	Frequency int
}

type PostingList []Posting

// TermEntry is one row of an index snapshot.
type TermEntry struct {
	Term     string
	DocFreq  int
	Postings PostingList
}

// Stats summarises an index.
type Stats struct {
	Documents      int `json:"documents"`
	EmptyDocuments int `json:"empty_documents"`
	Vocabulary     int `json:"vocabulary"`
	Tokens         int `json:"tokens"`
}
