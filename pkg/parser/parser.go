package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/dkbparse/pkg/models"
	"github.com/yurifrl/dkbparse/pkg/verify"
)

// CommentMode controls how card statements treat extended comment lines
type CommentMode string

const (
	// CommentUnbounded appends every extended comment line
	CommentUnbounded CommentMode = "unbounded"
	// CommentSingle appends only the first extended comment line after a row
	CommentSingle CommentMode = "single"
)

var (
	bankFilename = regexp.MustCompile(`^Kontoauszug_\d{10}_Nr_\d{4}_\d{3}_per_\d{4}_\d\d_\d\d\.(?:pdf|txt)$`)
	cardFilename = regexp.MustCompile(`^Kreditkartenabrechnung_\d{4}x{8}\d{4}_per_\d{4}_\d\d_\d\d\.(?:pdf|txt)$`)
)

// DetectKind tells bank and card statements apart by their file name. The
// second return value is false for any other file.
func DetectKind(filename string) (models.Kind, bool) {
	base := filepath.Base(filename)
	switch {
	case cardFilename.MatchString(base):
		return models.KindCard, true
	case bankFilename.MatchString(base):
		return models.KindBank, true
	default:
		return "", false
	}
}

// Result is the outcome of reconstructing one statement.
type Result struct {
	Statement    *models.Statement
	Transactions []*models.Transaction
	// Discrepancy is set when the transactions do not add up to the
	// declared balance change
	Discrepancy *verify.Discrepancy
}

// Option configures a Parser
type Option func(*Parser)

// WithCommentIndent sets the column of card statement comment continuations.
func WithCommentIndent(indent int) Option {
	return func(p *Parser) {
		if indent > 0 {
			p.commentIndent = indent
		}
	}
}

// WithCommentMode sets how many extended comment lines a card transaction takes.
func WithCommentMode(mode CommentMode) Option {
	return func(p *Parser) {
		if mode != "" {
			p.commentMode = mode
		}
	}
}

type Parser struct {
	logger        *log.Logger
	commentIndent int
	commentMode   CommentMode
	cardLines     []*Recognizer
}

func New(logger *log.Logger, opts ...Option) *Parser {
	p := &Parser{
		logger:        logger,
		commentIndent: DefaultCommentIndent,
		commentMode:   CommentUnbounded,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cardLines = CardRecognizers(p.commentIndent)
	return p
}

// ProcessBytes parses already extracted statement text, choosing the
// reconstructor from the file name.
func (p *Parser) ProcessBytes(data []byte, filename string) (*Result, error) {
	kind, ok := DetectKind(filename)
	p.logger.Debug("detected statement kind", "kind", kind, "filename", filename)
	if !ok {
		return nil, fmt.Errorf("unknown statement file %s", filename)
	}

	res, err := p.Parse(kind, SplitLines(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	res.Statement.File = filename
	p.Verify(res)
	return res, nil
}

// Parse runs the reconstructor for kind over lines.
func (p *Parser) Parse(kind models.Kind, lines []string) (*Result, error) {
	switch kind {
	case models.KindBank:
		return p.ParseBankStatement(lines)
	case models.KindCard:
		return p.ParseCardStatement(lines)
	default:
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
}

// Verify runs the balance check on res and logs a mismatch. The result is
// kept either way.
func (p *Parser) Verify(res *Result) {
	res.Discrepancy = verify.Check(res.Statement, res.Transactions)
	if res.Discrepancy != nil {
		p.logger.Error("statement does not add up", "details", res.Discrepancy.String())
	}
}

func (p *Parser) noise(lineNo int, line string) {
	p.logger.Debug("line not matched", "n", lineNo, "line", line)
}

func (p *Parser) matched(lineNo int, m *Match) {
	p.logger.Debug("line matched", "n", lineNo, "kind", m.Kind, "fields", m.Fields())
}

// SplitLines splits extracted text on every line boundary, including the
// form feeds pdftotext emits between pages. Empty lines are kept so that
// line numbers in logs match the source.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	start := 0
	for i, r := range text {
		switch r {
		case '\n', '\r', '\f', '\v', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, text[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
