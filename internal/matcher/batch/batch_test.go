package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeCases(t *testing.T) {
	cases, err := DecodeCases(strings.NewReader(`[
		{"file": "a.txt", "query": "hello", "answer": "hello there"},
		{"file": "b.txt", "query": "bye"}
	]`))
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, Case{File: "a.txt", Query: "hello", Answer: "hello there"}, cases[0])
	assert.Empty(t, cases[1].Answer)
}

func TestDecodeCasesRejectsBadInput(t *testing.T) {
	_, err := DecodeCases(strings.NewReader(`{"file": "a.txt"}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = DecodeCases(strings.NewReader(`[{"query": "hello"}]`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestReadCasesResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cases.json", `[
		{"file": "dialog.txt", "query": "q", "answer": "a"},
		{"file": "/abs/dialog.txt", "query": "q", "answer": "a"}
	]`)

	cases, err := ReadCases(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dialog.txt"), cases[0].File)
	assert.Equal(t, "/abs/dialog.txt", cases[1].File)

	_, err = ReadCases(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, apperrors.ErrSourceUnreadable)
}

func TestRunnerRun(t *testing.T) {
	dir := t.TempDir()
	dialog := writeFile(t, dir, "dialog.txt", "hello there\nhow are you\ngoodbye friend\n")
	empty := writeFile(t, dir, "empty.txt", "\n\n")

	reg := registry.New(registry.WithSeed(1))
	runner, err := NewRunner(reg, 4)
	require.NoError(t, err)
	defer runner.Release()

	cases := []Case{
		{File: dialog, Query: "hello", Answer: "hello there"},
		{File: dialog, Query: "goodbye", Answer: "how are you"},
		{File: empty, Query: "hello", Answer: "hello there"},
		{File: dialog, Query: "   ", Answer: ""},
	}
	report, err := runner.Run(context.Background(), cases)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Errors)

	require.Len(t, report.Outcomes, 4)
	assert.True(t, report.Outcomes[0].Passed)
	assert.Equal(t, 0, report.Outcomes[0].MatchedID)
	assert.Greater(t, report.Outcomes[0].Score, 0.0)

	assert.False(t, report.Outcomes[1].Passed)
	assert.Equal(t, "goodbye friend", report.Outcomes[1].Got)

	assert.Contains(t, report.Outcomes[2].Error, apperrors.ErrEmptyCorpus.Error())
	assert.Contains(t, report.Outcomes[3].Error, apperrors.ErrEmptyQuery.Error())

	// Both corpus files were indexed exactly once.
	assert.Equal(t, 2, reg.Len())
}

func TestRunnerAlternating(t *testing.T) {
	dir := t.TempDir()
	dialog := writeFile(t, dir, "dialog.txt", "hello there\nhow are you\ngoodbye friend\n")

	runner, err := NewRunner(registry.New(registry.WithSeed(1)), 2, WithAlternating(true))
	require.NoError(t, err)
	defer runner.Release()

	report, err := runner.Run(context.Background(), []Case{
		{File: dialog, Query: "hello", Answer: "how are you"},
		{File: dialog, Query: "goodbye", Answer: ""},
	})
	require.NoError(t, err)
	assert.True(t, report.Outcomes[0].Passed)
	assert.Equal(t, 2, report.Outcomes[1].MatchedID)
	assert.Contains(t, report.Outcomes[1].Error, apperrors.ErrNoSuccessor.Error())
}

func TestRunnerCancelled(t *testing.T) {
	dir := t.TempDir()
	dialog := writeFile(t, dir, "dialog.txt", "hello there\n")

	runner, err := NewRunner(registry.New(), 0)
	require.NoError(t, err)
	defer runner.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := runner.Run(ctx, []Case{{File: dialog, Query: "hello"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Errors)
}
