// Package loader reads corpus and stopword files. Read failures are returned
// wrapped in ErrSourceUnreadable together with whatever was read before the
// failure, so callers can log and carry on with a truncated source.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

const (
	maxLineSize   = 1 << 20
	progressEvery = 1000
)

// ReadCorpus returns the non-blank lines of the file at path, in order.
func ReadCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening corpus %s: %v", apperrors.ErrSourceUnreadable, path, err)
	}
	defer f.Close()
	lines, err := readCorpus(f, slog.Default().With("component", "loader", "path", path))
	if err != nil {
		return lines, fmt.Errorf("%w: reading corpus %s: %v", apperrors.ErrSourceUnreadable, path, err)
	}
	return lines, nil
}

// ReadCorpusFrom is ReadCorpus over an open stream.
func ReadCorpusFrom(r io.Reader) ([]string, error) {
	lines, err := readCorpus(r, slog.Default().With("component", "loader"))
	if err != nil {
		return lines, fmt.Errorf("%w: reading corpus: %v", apperrors.ErrSourceUnreadable, err)
	}
	return lines, nil
}

func readCorpus(r io.Reader, logger *slog.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	read := 0
	for scanner.Scan() {
		read++
		if read%progressEvery == 0 {
			logger.Debug("reading corpus", "lines", read, "documents", len(lines))
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return lines, err
	}
	logger.Info("corpus read", "lines", read, "documents", len(lines))
	return lines, nil
}

// ReadStopwords returns the lower-cased, trimmed entries of the stopword
// file at path. An empty path yields no stopwords and no error.
func ReadStopwords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening stopwords %s: %v", apperrors.ErrSourceUnreadable, path, err)
	}
	defer f.Close()
	words, err := ReadStopwordsFrom(f)
	if err != nil {
		return words, fmt.Errorf("stopwords %s: %w", path, err)
	}
	return words, nil
}

// ReadStopwordsFrom is ReadStopwords over an open stream.
func ReadStopwordsFrom(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var words []string
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w == "" {
			continue
		}
		words = append(words, w)
	}
	if err := scanner.Err(); err != nil {
		return words, fmt.Errorf("%w: reading stopwords: %v", apperrors.ErrSourceUnreadable, err)
	}
	return words, nil
}
