package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "DKBPARSE"

type Card struct {
	CommentIndent int    `mapstructure:"comment_indent"`
	CommentMode   string `mapstructure:"comment_mode"`
}

type YNAB struct {
	TokenEnv string `mapstructure:"token_env"`
}

type Config struct {
	Output      string `mapstructure:"output"`
	LogLevel    string `mapstructure:"log_level"`
	Workers     int    `mapstructure:"workers"`
	Rules       string `mapstructure:"rules"`
	Annotations string `mapstructure:"annotations"`
	Database    string `mapstructure:"database"`
	PDFToText   string `mapstructure:"pdftotext"`
	Sort        string `mapstructure:"sort"`
	UseCustomID bool   `mapstructure:"use_custom_id"`
	Card        Card   `mapstructure:"card"`
	YNAB        YNAB   `mapstructure:"ynab"`
}

func (c *Config) GetOutputPath() string {
	return c.Output
}

// Token reads the YNAB access token from the configured environment variable.
func (c *Config) Token() (string, error) {
	token := os.Getenv(c.YNAB.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("%s is not set", c.YNAB.TokenEnv)
	}
	return token, nil
}

// New creates a default configuration writing to outputPath
func New(outputPath string) *Config {
	c := defaults()
	c.Output = outputPath
	return c
}

func defaults() *Config {
	return &Config{
		LogLevel:  "info",
		Workers:   1,
		PDFToText: "pdftotext",
		Sort:      "valued-desc",
		Card: Card{
			CommentIndent: 18,
			CommentMode:   "unbounded",
		},
		YNAB: YNAB{TokenEnv: "YNAB_TOKEN"},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaults()
	v.SetDefault("output", d.Output)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("rules", d.Rules)
	v.SetDefault("annotations", d.Annotations)
	v.SetDefault("database", d.Database)
	v.SetDefault("pdftotext", d.PDFToText)
	v.SetDefault("sort", d.Sort)
	v.SetDefault("use_custom_id", d.UseCustomID)
	v.SetDefault("card.comment_indent", d.Card.CommentIndent)
	v.SetDefault("card.comment_mode", d.Card.CommentMode)
	v.SetDefault("ynab.token_env", d.YNAB.TokenEnv)
}

// Build merges, lowest first: defaults, the config file, a .env file in the
// working directory, DKBPARSE_* environment variables and flags that were set.
// Flags are bound by name with dashes read as underscores, so
// --log-level sets log_level and --comment-indent sets card.comment_indent.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var flagKeys = map[string]string{
	"comment-indent": "card.comment_indent",
	"comment-mode":   "card.comment_mode",
	"token-env":      "ynab.token_env",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = fmt.Errorf("failed to bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Card.CommentIndent < 1 {
		return fmt.Errorf("card.comment_indent must be positive, got %d", c.Card.CommentIndent)
	}
	switch c.Card.CommentMode {
	case "unbounded", "single":
	default:
		return fmt.Errorf("card.comment_mode must be unbounded or single, got %q", c.Card.CommentMode)
	}
	switch c.Sort {
	case "valued-desc", "none":
	default:
		return fmt.Errorf("sort must be valued-desc or none, got %q", c.Sort)
	}
	return nil
}
