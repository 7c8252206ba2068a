package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"

	"github.com/yurifrl/dkbparse/pkg/parser"
)

// ErrNoPages is returned for PDF files that open but contain no page.
var ErrNoPages = errors.New("pdf has no pages")

// Extractor turns a statement file into its ordered layout text lines.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// PDFToText runs poppler's pdftotext in layout mode.
type PDFToText struct {
	// Binary is the pdftotext executable, looked up in PATH when empty
	Binary string
	logger *log.Logger
}

func NewPDFToText(logger *log.Logger, binary string) *PDFToText {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PDFToText{Binary: binary, logger: logger}
}

func (e *PDFToText) Extract(ctx context.Context, path string) ([]string, error) {
	pages, err := Pages(path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	e.logger.Debug("extracting pdf", "file", path, "pages", pages)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, "-layout", path, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	scanner := bufio.NewScanner(&stderr)
	for scanner.Scan() {
		e.logger.Debug("pdftotext", "file", path, "stderr", scanner.Text())
	}
	if runErr != nil {
		return nil, fmt.Errorf("run %s on %s: %w", e.Binary, path, runErr)
	}

	return parser.SplitLines(stdout.String()), nil
}

// Pages opens a PDF and returns its page count.
func Pages(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n = r.NumPage()
	if n == 0 {
		return 0, ErrNoPages
	}
	return n, nil
}

// TextFile reads a layout text file produced earlier by pdftotext.
type TextFile struct{}

func (TextFile) Extract(_ context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parser.SplitLines(string(data)), nil
}

// Auto picks the extractor by file extension.
type Auto struct {
	PDF  Extractor
	Text Extractor
}

func NewAuto(logger *log.Logger, pdftotext string) *Auto {
	return &Auto{
		PDF:  NewPDFToText(logger, pdftotext),
		Text: TextFile{},
	}
}

func (a *Auto) Extract(ctx context.Context, path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return a.PDF.Extract(ctx, path)
	case ".txt":
		return a.Text.Extract(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported statement file %s", path)
	}
}
