package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/yurifrl/dkbparse/pkg/annotate"
	"github.com/yurifrl/dkbparse/pkg/config"
	"github.com/yurifrl/dkbparse/pkg/csv"
	"github.com/yurifrl/dkbparse/pkg/extract"
	"github.com/yurifrl/dkbparse/pkg/models"
	"github.com/yurifrl/dkbparse/pkg/parser"
	"github.com/yurifrl/dkbparse/pkg/tagging"
	"github.com/yurifrl/dkbparse/pkg/verify"
)

// Failure is a statement file that could not be parsed.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// Result collects everything parsed from a batch, in file path order.
type Result struct {
	Statements    []*models.Statement
	Transactions  []*models.Transaction
	Discrepancies []*verify.Discrepancy
	Failures      []Failure
	// Files holds the per statement results, sharing the transactions above
	Files []*parser.Result
	// Annotations is set when annotations were applied
	Annotations *annotate.Report
}

type Processor struct {
	config      *config.Config
	logger      *log.Logger
	parser      *parser.Parser
	extractor   extract.Extractor
	tagger      *tagging.Tagger
	annotations []annotate.Annotation
}

type Option func(*Processor)

// WithExtractor replaces the extension based default extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(p *Processor) {
		p.extractor = e
	}
}

// WithTagger sets the labelling rules instead of loading cfg.Rules.
func WithTagger(t *tagging.Tagger) Option {
	return func(p *Processor) {
		p.tagger = t
	}
}

// NewProcessor wires the parser, extractor and the optional rule and
// annotation files named in cfg.
func NewProcessor(cfg *config.Config, logger *log.Logger, opts ...Option) (*Processor, error) {
	p := &Processor{
		config: cfg,
		logger: logger,
		parser: parser.New(logger,
			parser.WithCommentIndent(cfg.Card.CommentIndent),
			parser.WithCommentMode(parser.CommentMode(cfg.Card.CommentMode)),
		),
		extractor: extract.NewAuto(logger, cfg.PDFToText),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.tagger == nil && cfg.Rules != "" {
		t, err := tagging.Load(logger, cfg.Rules)
		if err != nil {
			return nil, err
		}
		p.tagger = t
	}
	if cfg.Annotations != "" {
		a, err := annotate.Load(cfg.Annotations)
		if err != nil {
			return nil, err
		}
		p.annotations = a
	}
	return p, nil
}

func (p *Processor) Tagger() *tagging.Tagger {
	return p.tagger
}

// Scan walks dirs recursively and returns every bank or card statement file,
// sorted by path.
func (p *Processor) Scan(dirs ...string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := parser.DetectKind(d.Name()); ok {
				files = append(files, path)
			} else {
				p.logger.Debug("skipping file", "path", path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error reading directory: %w", err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ProcessFile extracts and parses a single statement file.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*parser.Result, error) {
	kind, ok := parser.DetectKind(path)
	if !ok {
		return nil, fmt.Errorf("not a statement file: %s", path)
	}

	lines, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	p.logger.Info("processing file", "path", path, "kind", kind)
	res, err := p.parser.Parse(kind, lines)
	if err != nil {
		return nil, err
	}
	res.Statement.File = path
	p.parser.Verify(res)
	return res, nil
}

type fileResult struct {
	path string
	res  *parser.Result
	err  error
}

// ProcessDirectories parses every statement below dirs with at most
// cfg.Workers files in flight. A file that fails is recorded in
// Result.Failures and does not stop the batch.
func (p *Processor) ProcessDirectories(ctx context.Context, dirs ...string) (*Result, error) {
	files, err := p.Scan(dirs...)
	if err != nil {
		return nil, err
	}
	return p.ProcessFiles(ctx, files), nil
}

func (p *Processor) ProcessFiles(ctx context.Context, files []string) *Result {
	workers := p.config.Workers
	if workers < 1 {
		workers = 1
	}

	wp := pool.NewWithResults[fileResult]().WithMaxGoroutines(workers)
	for _, path := range files {
		path := path
		wp.Go(func() fileResult {
			res, err := p.ProcessFile(ctx, path)
			return fileResult{path: path, res: res, err: err}
		})
	}
	results := wp.Wait()
	sort.Slice(results, func(i, j int) bool {
		return results[i].path < results[j].path
	})

	out := &Result{}
	for _, r := range results {
		if r.err != nil {
			p.logger.Warn("failed to process file", "path", r.path, "error", r.err)
			out.Failures = append(out.Failures, Failure{Path: r.path, Err: r.err})
			continue
		}
		out.Files = append(out.Files, r.res)
		out.Statements = append(out.Statements, r.res.Statement)
		out.Transactions = append(out.Transactions, r.res.Transactions...)
		if r.res.Discrepancy != nil {
			out.Discrepancies = append(out.Discrepancies, r.res.Discrepancy)
		}
	}

	p.postProcess(out)
	p.logger.Info("processed statements",
		"files", len(files), "statements", len(out.Statements),
		"transactions", len(out.Transactions), "failures", len(out.Failures))
	return out
}

// postProcess labels first so that annotations can override labels.
func (p *Processor) postProcess(res *Result) {
	if p.tagger != nil {
		n := p.tagger.Apply(res.Transactions)
		p.logger.Debug("labelled transactions", "count", n)
	}
	if len(p.annotations) > 0 {
		res.Annotations = annotate.Apply(p.logger, res.Transactions, p.annotations)
	}
}

// WriteCSV exports the transactions of res in the configured order.
func (p *Processor) WriteCSV(w io.Writer, res *Result, filter csv.FilterFunc) error {
	return csv.Write(w, res.Transactions, csv.Order(p.config.Sort), filter)
}
