package plan

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// YNABConfig maps canonical statement accounts (16 digit bank account or
// masked card number) to YNAB account IDs.
type YNABConfig struct {
	BudgetID    string            `yaml:"budget_id"`
	TokenEnv    string            `yaml:"token_env"`
	UseCustomID bool              `yaml:"use_custom_id"`
	Accounts    map[string]string `yaml:"accounts"`
}

type Plan struct {
	YNAB       YNABConfig  `yaml:"ynab"`
	Statements []Statement `yaml:"statements"`
}

// Statement is a directory scanned for DKB statements.
type Statement struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if len(p.Statements) == 0 {
		return nil, fmt.Errorf("plan has no statements")
	}
	if p.YNAB.BudgetID == "" {
		return nil, fmt.Errorf("plan has no ynab.budget_id")
	}
	if len(p.YNAB.Accounts) == 0 {
		return nil, fmt.Errorf("plan maps no accounts")
	}
	if p.YNAB.TokenEnv == "" {
		p.YNAB.TokenEnv = "YNAB_TOKEN"
	}
	return &p, nil
}

// Dirs returns the statement directories in plan order.
func (p *Plan) Dirs() []string {
	dirs := make([]string, 0, len(p.Statements))
	for _, st := range p.Statements {
		dirs = append(dirs, st.Dir)
	}
	return dirs
}

// AccountID returns the YNAB account for a statement account.
func (p *Plan) AccountID(account string) (string, bool) {
	id, ok := p.YNAB.Accounts[account]
	return id, ok && id != ""
}

func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "YNAB budget: %s\n", p.YNAB.BudgetID)
	for i, st := range p.Statements {
		fmt.Fprintf(w, "[%d] dir=%s\n", i+1, st.Dir)
	}

	accounts := make([]string, 0, len(p.YNAB.Accounts))
	for a := range p.YNAB.Accounts {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	for _, a := range accounts {
		fmt.Fprintf(w, "    %s -> %s\n", a, p.YNAB.Accounts[a])
	}
}
