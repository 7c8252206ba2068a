package tagging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/dkbparse/pkg/models"
)

const rules = `
food:
  groceries: REWE|EDEKA
  restaurant:
    pizza: Pizzeria
rent: Miete
online: AMAZON
shopping: AMAZON\.COM
`

func newTagger(t *testing.T, src string) *Tagger {
	t.Helper()
	tg, err := New(log.New(io.Discard), strings.NewReader(src))
	require.NoError(t, err)
	return tg
}

func TestTag(t *testing.T) {
	tg := newTagger(t, rules)

	tests := []struct {
		comment string
		label   string
	}{
		{"REWE Markt Berlin", "groceries"},
		{"Pizzeria Da Mario", "pizza"},
		{"Miete Januar", "rent"},
		{"Bäckerei", ""},
		// prefix match only
		{"Zahlung an REWE", ""},
		// blanks are ignored
		{"Mie te", "rent"},
	}
	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			assert.Equal(t, tt.label, tg.Tag(tt.comment).Label)
		})
	}
}

func TestTagAmbiguous(t *testing.T) {
	tg := newTagger(t, rules)

	m := tg.Tag("AMAZON.COM Einkauf")
	assert.True(t, m.Ambiguous())
	assert.Equal(t, []string{"online", "shopping"}, m.Candidates)
	assert.Equal(t, "shopping", m.Label)
}

func TestHierarchy(t *testing.T) {
	tg := newTagger(t, rules)

	assert.True(t, tg.BelongsTo("pizza", "food"))
	assert.True(t, tg.BelongsTo("pizza", "restaurant"))
	assert.True(t, tg.BelongsTo("rent", "rent"))
	assert.False(t, tg.BelongsTo("rent", "food"))
	assert.Equal(t, []string{"food", "restaurant"}, tg.Parents("pizza"))
	assert.True(t, tg.Exists("restaurant"))
	assert.False(t, tg.Exists("travel"))
	assert.Equal(t, []string{"groceries", "pizza", "rent", "online", "shopping"}, tg.Labels())
}

func TestDuplicateLabelKeepsPosition(t *testing.T) {
	tg := newTagger(t, "a: X\nb: Y\ngroup:\n  a: Z\n")

	assert.Equal(t, []string{"a", "b"}, tg.Labels())
	assert.Equal(t, "a", tg.Tag("Z").Label)
	assert.Equal(t, "", tg.Tag("X").Label)
}

func TestApply(t *testing.T) {
	tg := newTagger(t, rules)
	txs := []*models.Transaction{
		{Comment: "REWE Markt"},
		{Comment: "unbekannt", Label: "manual"},
	}

	assert.Equal(t, 1, tg.Apply(txs))
	assert.Equal(t, "groceries", txs[0].Label)
	assert.Equal(t, "manual", txs[1].Label)
}

func TestInvalidRules(t *testing.T) {
	for _, src := range []string{"- a\n- b\n", "a: [1, 2]\n", "a: '('\n"} {
		_, err := New(log.New(io.Discard), strings.NewReader(src))
		assert.Error(t, err, src)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o644))

	tg, err := Load(log.New(io.Discard), path)
	require.NoError(t, err)
	assert.Equal(t, "rent", tg.Tag("Miete").Label)

	_, err = Load(log.New(io.Discard), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
