package tagging

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/yurifrl/dkbparse/pkg/models"
)

type rule struct {
	label string
	re    *regexp.Regexp
}

// Tagger assigns labels to transaction comments from a hierarchical rule file:
//
//	food:
//	  groceries: REWE|EDEKA
//	  restaurant: Restaurant
//	rent: Miete
//
// A string value is a rule, a mapping is a group whose key becomes a parent
// of every label below it.
type Tagger struct {
	logger  *log.Logger
	rules   []rule
	parents map[string][]string
}

// Match is the outcome of tagging one comment.
type Match struct {
	Label string
	// Candidates lists every matching label in rule order when more than
	// one rule matched. Label is the last of them.
	Candidates []string
}

func (m Match) Ambiguous() bool {
	return len(m.Candidates) > 1
}

func Load(logger *log.Logger, path string) (*Tagger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return New(logger, f)
}

func New(logger *log.Logger, r io.Reader) (*Tagger, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	t := &Tagger{logger: logger, parents: make(map[string][]string)}
	if len(doc.Content) == 0 {
		return t, nil
	}
	if err := t.traverse(doc.Content[0], nil); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tagger) traverse(node *yaml.Node, parents []string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: rules must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		label := key.Value
		t.parents[label] = append([]string(nil), parents...)

		switch value.Kind {
		case yaml.ScalarNode:
			re, err := regexp.Compile(`^(?:` + value.Value + `)`)
			if err != nil {
				return fmt.Errorf("line %d: rule %s: %w", value.Line, label, err)
			}
			t.add(label, re)
		case yaml.MappingNode:
			if err := t.traverse(value, append(parents, label)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: rule %s must be a pattern or a group", value.Line, label)
		}
	}
	return nil
}

func (t *Tagger) add(label string, re *regexp.Regexp) {
	for i := range t.rules {
		if t.rules[i].label == label {
			t.logger.Error("ambiguous label", "label", label)
			t.rules[i].re = re
			return
		}
	}
	t.rules = append(t.rules, rule{label: label, re: re})
}

// Tag matches comment against every rule. Blanks are removed from the comment
// first because the text extractor does not preserve them reliably.
func (t *Tagger) Tag(comment string) Match {
	compact := strings.ReplaceAll(comment, " ", "")

	var m Match
	for _, r := range t.rules {
		if r.re.MatchString(compact) {
			m.Candidates = append(m.Candidates, r.label)
			m.Label = r.label
		}
	}
	if m.Ambiguous() {
		t.logger.Error("ambiguous pattern", "comment", comment, "labels", m.Candidates)
	}
	return m
}

// Apply labels every transaction whose comment matches a rule and returns
// how many were labelled.
func (t *Tagger) Apply(txs []*models.Transaction) int {
	n := 0
	for _, tx := range txs {
		if m := t.Tag(tx.Comment); m.Label != "" {
			tx.Label = m.Label
			n++
		}
	}
	return n
}

// BelongsTo reports whether label is group or sits below it.
func (t *Tagger) BelongsTo(label, group string) bool {
	if label == group {
		return true
	}
	for _, p := range t.parents[label] {
		if p == group {
			return true
		}
	}
	return false
}

// Exists reports whether name is a known label or group.
func (t *Tagger) Exists(name string) bool {
	_, ok := t.parents[name]
	return ok
}

// Parents returns the groups above label, outermost first.
func (t *Tagger) Parents(label string) []string {
	return t.parents[label]
}

func (t *Tagger) Labels() []string {
	out := make([]string, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r.label)
	}
	return out
}
