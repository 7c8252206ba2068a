package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("out.csv")
	assert.Equal(t, "out.csv", c.GetOutputPath())
	assert.Equal(t, 18, c.Card.CommentIndent)
	assert.NoError(t, c.Validate())
}

func TestBuildDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	c, err := Build("", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, "unbounded", c.Card.CommentMode)
	assert.Equal(t, "valued-desc", c.Sort)
	assert.Equal(t, "YNAB_TOKEN", c.YNAB.TokenEnv)
}

func TestBuildLayers(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfgFile := filepath.Join(dir, "dkbparse.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
workers: 4
rules: rules.yaml
card:
  comment_indent: 20
  comment_mode: single
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DKBPARSE_DATABASE=env.db\n"), 0o644))
	t.Setenv("DKBPARSE_WORKERS", "8")
	t.Cleanup(func() { os.Unsetenv("DKBPARSE_DATABASE") })

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rules", "", "")
	flags.Int("comment-indent", 0, "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--comment-indent", "22"}))

	c, err := Build(cfgFile, flags)
	require.NoError(t, err)

	assert.Equal(t, 8, c.Workers, "env beats file")
	assert.Equal(t, "rules.yaml", c.Rules, "unset flag does not override file")
	assert.Equal(t, 22, c.Card.CommentIndent, "set flag beats file")
	assert.Equal(t, "single", c.Card.CommentMode)
	assert.Equal(t, "env.db", c.Database)
	assert.Equal(t, "info", c.LogLevel)
}

func TestBuildInvalid(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfgFile := filepath.Join(dir, "dkbparse.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("card:\n  comment_mode: twice\n"), 0o644))

	_, err := Build(cfgFile, nil)
	assert.ErrorContains(t, err, "comment_mode")

	_, err = Build(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	c := New("")
	c.YNAB.TokenEnv = "DKBPARSE_TEST_TOKEN"

	_, err := c.Token()
	assert.Error(t, err)

	t.Setenv("DKBPARSE_TEST_TOKEN", "secret")
	token, err := c.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
