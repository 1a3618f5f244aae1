// Command matchctl works with corpus files directly, without the matcher
// service: an interactive chat loop, the batch test harness and corpus
// inspection.
//
// Usage:
//
//	matchctl chat --corpus movie_lines.txt --stopwords stopwords.txt --alternating
//	matchctl batch --cases cases.json --workers 8
//	matchctl inspect --corpus movie_lines.txt --top 20
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "matchctl",
		Usage: "Match free text against a corpus of dialog lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"DM_LOGGING_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file for batch workers and postgres",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "Read lines from stdin and print the best matching corpus line",
				Action: chatCommand,
				Flags: append(corpusFlags(),
					&cli.BoolFlag{
						Name:    "alternating",
						Aliases: []string{"a"},
						Usage:   "Reply with the line after the match",
					},
					&cli.Int64Flag{
						Name:  "seed",
						Usage: "Seed for tie-breaking; 0 picks a random seed",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print each shared term's contribution to the score",
					},
				),
			},
			{
				Name:   "batch",
				Usage:  "Run a JSON file of (file, query, answer) cases and report pass/fail",
				Action: batchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "cases",
						Usage:    "Path to the JSON case file",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "stopwords",
						Aliases: []string{"s"},
						Usage:   "Path to the stopword file",
						EnvVars: []string{"DM_MATCHER_STOPWORDS"},
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent cases; 0 uses batch.workers from the config",
					},
					&cli.BoolFlag{
						Name:    "alternating",
						Aliases: []string{"a"},
						Usage:   "Answer each case with the line after the match",
					},
					&cli.Int64Flag{
						Name:  "seed",
						Usage: "Seed for tie-breaking; 0 picks a random seed",
					},
					&cli.BoolFlag{
						Name:  "persist",
						Usage: "Save the report to postgres",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full report as JSON",
					},
				},
			},
			{
				Name:   "inspect",
				Usage:  "Print corpus statistics and the most common terms",
				Action: inspectCommand,
				Flags: append(corpusFlags(),
					&cli.IntFlag{
						Name:  "top",
						Usage: "Number of terms to list by document frequency",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print statistics as JSON",
					},
				),
			},
		},
	}
}

func corpusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "corpus",
			Aliases:  []string{"f"},
			Usage:    "Path to the corpus file, one document per line",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "stopwords",
			Aliases: []string{"s"},
			Usage:   "Path to the stopword file",
			EnvVars: []string{"DM_MATCHER_STOPWORDS"},
		},
	}
}

// setupLogger sends logs to stderr so stdout carries only results.
func setupLogger(c *cli.Context) error {
	logger.SetupWriter(os.Stderr, c.String("log-level"), "text")
	return nil
}

// openCorpus indexes the corpus named by the --corpus and --stopwords flags.
func openCorpus(c *cli.Context) (*matcher.Engine, error) {
	var opts []registry.Option
	if seed := c.Int64("seed"); seed != 0 {
		opts = append(opts, registry.WithSeed(seed))
	}
	path := c.String("corpus")
	return registry.New(opts...).Open(registry.Source{
		Name:      path,
		Path:      path,
		Stopwords: c.String("stopwords"),
	})
}
