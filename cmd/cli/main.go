package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/yurifrl/dkbparse/pkg/annotate"
	"github.com/yurifrl/dkbparse/pkg/config"
	"github.com/yurifrl/dkbparse/pkg/csv"
	"github.com/yurifrl/dkbparse/pkg/executors"
	"github.com/yurifrl/dkbparse/pkg/plan"
	"github.com/yurifrl/dkbparse/pkg/service"
	"github.com/yurifrl/dkbparse/pkg/store"
	"github.com/yurifrl/dkbparse/pkg/ynab"
)

var (
	cliFilters filters
	cfgFile    string
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	labelStyle = lipgloss.NewStyle().Bold(true)
)

// env bundles what every subcommand needs.
type env struct {
	config    *config.Config
	logger    *log.Logger
	processor *service.Processor
}

func setup(cmd *cobra.Command) (*env, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "dkbparse-cli",
	})

	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	processor, err := service.NewProcessor(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{config: cfg, logger: logger, processor: processor}, nil
}

// process parses the statement directories in args.
func process(cmd *cobra.Command, args []string) (*env, *service.Result, error) {
	e, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	res, err := e.processor.ProcessDirectories(cmd.Context(), args...)
	if err != nil {
		return nil, nil, err
	}
	if res.Annotations != nil && !res.Annotations.Clean() {
		e.logger.Warn("annotations not applied cleanly",
			"missing", len(res.Annotations.Missing), "duplicate", len(res.Annotations.Duplicate))
	}
	return e, res, nil
}

func writeOutput(path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(f)
}

var rootCmd = &cobra.Command{
	Use:           "dkbparse-cli",
	Short:         "Parse DKB bank and VISA card statements",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <dir>...",
	Short: "Convert statements to CSV",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, res, err := process(cmd, args)
		if err != nil {
			return err
		}
		filter, err := cliFilters.toFilterFunc(e.processor.Tagger())
		if err != nil {
			return err
		}
		for _, f := range res.Failures {
			e.logger.Warn("statement skipped", "file", f.Path, "err", f.Err)
		}
		return writeOutput(e.config.GetOutputPath(), func(w io.Writer) error {
			return e.processor.WriteCSV(w, res, filter)
		})
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <dir>...",
	Short: "Dump the parsed statements and transactions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, res, err := process(cmd, args)
		if err != nil {
			return err
		}
		filter, err := cliFilters.toFilterFunc(e.processor.Tagger())
		if err != nil {
			return err
		}
		color, _ := cmd.Flags().GetBool("color")
		pp.Default.SetColoringEnabled(color)

		out := cmd.OutOrStdout()
		for _, file := range res.Files {
			pp.Fprintln(out, file.Statement)
			for _, t := range apply(file.Transactions, filter) {
				pp.Fprintln(out, t)
			}
		}
		for _, f := range res.Failures {
			pp.Fprintln(out, f)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [flags] <dir>...",
	Short: "Check that every statement adds up to its balances",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, res, err := process(cmd, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, d := range res.Discrepancies {
			fmt.Fprintln(out, errStyle.Render("✗ "+d.String()))
		}
		for _, f := range res.Failures {
			fmt.Fprintln(out, errStyle.Render("✗ "+f.Error()))
		}
		if len(res.Discrepancies) > 0 || len(res.Failures) > 0 {
			return fmt.Errorf("%d inconsistent and %d unreadable statement(s)", len(res.Discrepancies), len(res.Failures))
		}
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("✓ %d statement(s), %d transaction(s) consistent",
			len(res.Statements), len(res.Transactions))))
		return nil
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag [flags] <dir>...",
	Short: "Label transactions with the rules file and sum them per label",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, res, err := process(cmd, args)
		if err != nil {
			return err
		}
		tagger := e.processor.Tagger()
		if tagger == nil {
			return errors.New("no rules file configured, use --rules")
		}
		filter, err := cliFilters.toFilterFunc(tagger)
		if err != nil {
			return err
		}

		sums := make(map[string]decimal.Decimal)
		unlabelled := 0
		out := cmd.OutOrStdout()
		for _, t := range apply(res.Transactions, filter) {
			if t.Label == "" {
				unlabelled++
				continue
			}
			path := append(append([]string(nil), tagger.Parents(t.Label)...), t.Label)
			fmt.Fprintf(out, "%s | %-30.30s | %10s | %s\n",
				t.Date(), t.Description(), t.Value.StringFixed(2), strings.Join(path, "/"))
			sums[t.Label] = sums[t.Label].Add(t.Value)
		}

		labels := make([]string, 0, len(sums))
		for l := range sums {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		fmt.Fprintln(out)
		for _, l := range labels {
			fmt.Fprintf(out, "%s %s EUR\n", labelStyle.Render(fmt.Sprintf("%-20s", l)), sums[l].StringFixed(2))
		}
		fmt.Fprintf(out, "%d transaction(s) without label\n", unlabelled)
		return nil
	},
}

var annotateCmd = &cobra.Command{
	Use:   "annotate [flags] <dir>...",
	Short: "Write an annotation skeleton for the matching transactions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, res, err := process(cmd, args)
		if err != nil {
			return err
		}
		filter, err := cliFilters.toFilterFunc(e.processor.Tagger())
		if err != nil {
			return err
		}
		txs := apply(res.Transactions, filter)
		e.logger.Info("writing annotation skeleton", "transactions", len(txs))
		return writeOutput(e.config.GetOutputPath(), func(w io.Writer) error {
			return annotate.Encode(w, txs)
		})
	},
}

func openStore(cmd *cobra.Command, e *env) (*store.Store, error) {
	if e.config.Database == "" {
		return nil, errors.New("no database configured, use --database")
	}
	return store.Open(cmd.Context(), e.logger, e.config.Database)
}

var storeCmd = &cobra.Command{
	Use:   "store [flags] <dir>...",
	Short: "Save the parsed statements into the database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		e, res, err := process(cmd, args)
		if err != nil {
			return err
		}
		db, err := openStore(cmd, e)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := db.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		for _, file := range res.Files {
			if err := db.SaveStatement(cmd.Context(), file.Statement, file.Transactions); err != nil {
				return err
			}
		}

		counts, err := db.Statements(cmd.Context())
		if err != nil {
			return err
		}
		accounts := make([]string, 0, len(counts))
		for a := range counts {
			accounts = append(accounts, a)
		}
		sort.Strings(accounts)
		for _, a := range accounts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d statement(s)\n", a, counts[a])
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [flags] [account]",
	Short: "Write the stored transactions as CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		db, err := openStore(cmd, e)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := db.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		account := ""
		if len(args) == 1 {
			account = args[0]
		}
		txs, err := db.Transactions(cmd.Context(), account)
		if err != nil {
			return err
		}
		filter, err := cliFilters.toFilterFunc(e.processor.Tagger())
		if err != nil {
			return err
		}
		return writeOutput(e.config.GetOutputPath(), func(w io.Writer) error {
			return csv.Write(w, txs, csv.Order(e.config.Sort), filter)
		})
	},
}

// newExecutor loads the sync plan and connects to YNAB with the token from
// the environment variable the plan names.
func newExecutor(cmd *cobra.Command, planPath string) (*executors.Executor, error) {
	e, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	p, err := plan.Load(planPath)
	if err != nil {
		return nil, err
	}
	if e.config.UseCustomID {
		p.YNAB.UseCustomID = true
	}
	token := os.Getenv(p.YNAB.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("%s is not set", p.YNAB.TokenEnv)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Plan %s\n", planPath)
	p.Print(out)
	return executors.New(e.logger, p, e.processor, ynab.New(token).Transaction(), out), nil
}

var planCmd = &cobra.Command{
	Use:   "plan <plan_file>",
	Short: "Preview which transactions a sync would create in YNAB (dry-run)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, err := newExecutor(cmd, args[0])
		if err != nil {
			return err
		}
		_, err = exec.Plan(cmd.Context())
		return err
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <plan_file>",
	Short: "Create the missing transactions in YNAB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, err := newExecutor(cmd, args[0])
		if err != nil {
			return err
		}
		created, err := exec.Apply(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("created %d transaction(s)", created)))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Config file")
	pf.StringP("output", "o", "", "Output file (default: stdout)")
	pf.String("log-level", "info", "Log level (debug logs every classified line)")
	pf.Int("workers", 1, "Parallel statement workers")
	pf.String("rules", "", "Label rules file")
	pf.String("annotations", "", "Annotation file applied after parsing")
	pf.String("database", "", "SQLite database file")
	pf.String("pdftotext", "pdftotext", "pdftotext binary")
	pf.String("sort", "valued-desc", "CSV order: valued-desc or none")
	pf.Int("comment-indent", 18, "Card statement continuation line indent")
	pf.String("comment-mode", "unbounded", "Card continuation lines: unbounded or single")
	pf.Bool("use-custom-id", false, "Match YNAB transactions by the id stored in the memo")

	// Filter flags (global)
	pf.StringVar(&cliFilters.startDate, "start", "", "Start valued date (YYYY-MM-DD)")
	pf.StringVar(&cliFilters.endDate, "end", "", "End valued date (YYYY-MM-DD)")
	pf.StringVar(&cliFilters.minAmount, "min", "", "Minimum amount")
	pf.StringVar(&cliFilters.maxAmount, "max", "", "Maximum amount")
	pf.StringVar(&cliFilters.payee, "payee", "", "Filter by payee (case insensitive)")
	pf.StringVar(&cliFilters.account, "account", "", "Filter by canonical account")
	pf.StringVar(&cliFilters.label, "label", "", "Filter by label or label group")

	inspectCmd.Flags().Bool("color", true, "Colored output")

	rootCmd.AddCommand(convertCmd, inspectCmd, verifyCmd, tagCmd, annotateCmd, storeCmd, exportCmd, planCmd, applyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
