package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/dkbparse/pkg/annotate"
	"github.com/yurifrl/dkbparse/pkg/config"
	"github.com/yurifrl/dkbparse/pkg/parser"
)

const (
	bankName = "Kontoauszug_1234567890_Nr_2024_003_per_2024_04_01.txt"
	cardName = "Kreditkartenabrechnung_4998xxxxxxxx1234_per_2024_03_31.txt"
)

func copySample(t *testing.T, name, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "parser", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// statementsDir lays out two good statements, one broken statement and
// unrelated files.
func statementsDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	copySample(t, bankName, filepath.Join(root, "konto"))
	copySample(t, cardName, filepath.Join(root, "visa", "2024"))

	broken := "Kontoauszug_1234567890_Nr_2024_004_per_2024_05_01.txt"
	require.NoError(t, os.WriteFile(filepath.Join(root, "konto", broken),
		[]byte("01.04.  01.04.  Lastschrift   9,99\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	return root
}

func newProcessor(t *testing.T, cfg *config.Config, opts ...Option) *Processor {
	t.Helper()
	p, err := NewProcessor(cfg, log.New(io.Discard), opts...)
	require.NoError(t, err)
	return p
}

func TestScan(t *testing.T) {
	root := statementsDir(t)

	files, err := newProcessor(t, config.New("")).Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, f := range files {
		_, ok := parser.DetectKind(f)
		assert.True(t, ok, f)
	}

	_, err = newProcessor(t, config.New("")).Scan(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestProcessDirectories(t *testing.T) {
	for _, workers := range []int{1, 4} {
		cfg := config.New("")
		cfg.Workers = workers

		res, err := newProcessor(t, cfg).ProcessDirectories(context.Background(), statementsDir(t))
		require.NoError(t, err)

		require.Len(t, res.Failures, 1)
		assert.True(t, errors.Is(res.Failures[0].Err, parser.ErrNoTableHeader))
		assert.Contains(t, res.Failures[0].Path, "Nr_2024_004")

		require.Len(t, res.Statements, 2)
		assert.Equal(t, "1234567890", res.Statements[0].Account)
		assert.Equal(t, "4998XXXXXXXX1234", res.Statements[1].Account)
		assert.Len(t, res.Transactions, 5)
		require.Len(t, res.Files, 2)
		assert.Len(t, res.Files[0].Transactions, 2)
		assert.Same(t, res.Files[1].Transactions[0], res.Transactions[2])
		assert.Empty(t, res.Discrepancies)
		assert.Nil(t, res.Annotations)
	}
}

func TestProcessWithRulesAndAnnotations(t *testing.T) {
	root := statementsDir(t)

	rules := filepath.Join(root, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("food:\n  groceries: REWE\nrent: Miete\n"), 0o644))

	// annotate the salary transaction of the bank statement
	p := newProcessor(t, config.New(""))
	first, err := p.ProcessFile(context.Background(), filepath.Join(root, "konto", bankName))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, annotate.Encode(&buf, first.Transactions[1:]))
	annotations := filepath.Join(root, "annotations.yaml")
	data := strings.Replace(buf.String(), "payee: Arbeitgeber GmbH", "payee: Employer", 1)
	require.NoError(t, os.WriteFile(annotations, []byte(data), 0o644))

	cfg := config.New("")
	cfg.Rules = rules
	cfg.Annotations = annotations
	res, err := newProcessor(t, cfg).ProcessDirectories(context.Background(), filepath.Join(root, "konto"), filepath.Join(root, "visa"))
	require.NoError(t, err)

	require.NotNil(t, res.Annotations)
	assert.True(t, res.Annotations.Clean())
	assert.Equal(t, 1, res.Annotations.Applied)

	byPayee := map[string]string{}
	for _, tx := range res.Transactions {
		byPayee[tx.Comment] = tx.Label
		if tx.Number == 2 && tx.Type == "Gutschrift" {
			assert.Equal(t, "Employer", tx.Payee)
		}
	}
	assert.Equal(t, "rent", byPayee["Miete Januar"])
	assert.Equal(t, "groceries", byPayee["REWE Markt Berlin Filiale 123 Kartenzahlung"])
}

func TestWriteCSV(t *testing.T) {
	root := statementsDir(t)
	p := newProcessor(t, config.New(""))

	res, err := p.ProcessDirectories(context.Background(), root)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.WriteCSV(&buf, res, nil))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	// newest valued date first
	assert.Contains(t, lines[1], "2024-03-06")
}

func TestProcessFileRejectsUnknownName(t *testing.T) {
	_, err := newProcessor(t, config.New("")).ProcessFile(context.Background(), "statement.txt")
	assert.Error(t, err)
}
