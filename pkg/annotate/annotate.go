package annotate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/yurifrl/dkbparse/pkg/models"
)

// Key identifies a transaction independently of how the extractor spaced its
// text.
func Key(t *models.Transaction) string {
	parts := []string{
		t.Account,
		t.StatementID(),
		t.NumberID(),
		t.Booked.Format("2006-01-02"),
		t.Valued.Format("2006-01-02"),
		t.Type,
		t.Value.StringFixed(2),
		t.Comment,
	}
	sum := sha256.Sum256([]byte(stripSpace(strings.Join(parts, "|"))))
	return hex.EncodeToString(sum[:])
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Annotation overrides fields of the transaction with the same key. Nil
// fields are left alone.
type Annotation struct {
	Key     string  `yaml:"key"`
	Payee   *string `yaml:"payee,omitempty"`
	Comment *string `yaml:"comment,omitempty"`
	Type    *string `yaml:"type,omitempty"`
	Label   *string `yaml:"label,omitempty"`
}

// File is the on-disk list of annotations.
type File struct {
	Annotations []Annotation `yaml:"annotations"`
}

func Load(path string) ([]Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) ([]Annotation, error) {
	var file File
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	return file.Annotations, nil
}

// Encode writes a skeleton annotation for every transaction, prefilled with
// its current payee and comment.
func Encode(w io.Writer, txs []*models.Transaction) error {
	file := File{Annotations: make([]Annotation, 0, len(txs))}
	for _, t := range txs {
		payee, comment := t.Payee, t.Comment
		file.Annotations = append(file.Annotations, Annotation{
			Key:     Key(t),
			Payee:   &payee,
			Comment: &comment,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return err
	}
	return enc.Close()
}

// Report lists annotations that could not be applied cleanly.
type Report struct {
	Applied int
	// Missing holds keys no parsed transaction has
	Missing []string
	// Duplicate holds keys shared by several parsed transactions or given
	// more than once in the annotations
	Duplicate []string
}

func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Duplicate) == 0
}

// Apply overwrites parsed transactions in place with their annotations.
func Apply(logger *log.Logger, txs []*models.Transaction, annotations []Annotation) *Report {
	index := make(map[string][]*models.Transaction, len(txs))
	for _, t := range txs {
		k := Key(t)
		index[k] = append(index[k], t)
	}

	report := &Report{}
	seen := make(map[string]bool, len(annotations))
	for _, a := range annotations {
		if seen[a.Key] {
			logger.Error("annotation given twice", "key", a.Key)
			report.Duplicate = append(report.Duplicate, a.Key)
			continue
		}
		seen[a.Key] = true

		matches := index[a.Key]
		switch len(matches) {
		case 0:
			logger.Warn("annotation matches no transaction", "key", a.Key)
			report.Missing = append(report.Missing, a.Key)
			continue
		case 1:
		default:
			logger.Error("annotation key is not unique", "key", a.Key, "transactions", len(matches))
			report.Duplicate = append(report.Duplicate, a.Key)
		}

		for _, t := range matches {
			a.apply(t)
		}
		report.Applied++
	}
	return report
}

func (a Annotation) apply(t *models.Transaction) {
	if a.Payee != nil {
		t.Payee = *a.Payee
	}
	if a.Comment != nil {
		t.Comment = *a.Comment
	}
	if a.Type != nil {
		t.Type = *a.Type
	}
	if a.Label != nil {
		t.Label = *a.Label
	}
}
