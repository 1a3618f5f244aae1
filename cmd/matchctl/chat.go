package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

func chatCommand(c *cli.Context) error {
	engine, err := openCorpus(c)
	if err != nil {
		return err
	}
	if engine.Len() == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrEmptyCorpus, c.String("corpus"))
	}
	fmt.Fprintf(os.Stderr, "%d lines indexed; enter a blank line to quit\n", engine.Len())
	return chat(c.Context, engine, os.Stdin, os.Stdout, chatOptions{
		alternating: c.Bool("alternating"),
		explain:     c.Bool("explain"),
		prompt:      "> ",
	})
}

type chatOptions struct {
	alternating bool
	explain     bool
	prompt      string
}

// chat answers one line at a time until an empty line or EOF. Per-line
// errors are printed and the session continues.
func chat(ctx context.Context, engine *matcher.Engine, in io.Reader, out io.Writer, opts chatOptions) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, opts.prompt)
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			break
		}

		res, err := engine.Match(ctx, line, opts.alternating)
		switch {
		case errors.Is(err, apperrors.ErrNoSuccessor):
			fmt.Fprintf(out, "no line follows the match (#%d %q)\n", res.MatchedID, res.MatchedText)
			continue
		case errors.Is(err, apperrors.ErrEmptyQuery):
			fmt.Fprintln(out, "please type something")
			continue
		case err != nil:
			return err
		}
		fmt.Fprintln(out, res.SelectedText)

		if opts.explain {
			if err := printExplanation(out, engine, line, res); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return ctx.Err()
}

func printExplanation(out io.Writer, engine *matcher.Engine, query string, res matcher.Result) error {
	ex, err := engine.Explain(query, res.MatchedID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  #%d score=%.4f ties=%d terms=[%s]\n",
		res.MatchedID, res.Score, res.TieSize, strings.Join(res.Terms, " "))
	for _, contrib := range ex.Contributions {
		fmt.Fprintf(out, "    %-20s q=%.4f d=%.4f +%.4f\n",
			contrib.Term, contrib.QueryWeight, contrib.DocWeight, contrib.Score)
	}
	return nil
}
