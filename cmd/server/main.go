package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/yurifrl/dkbparse/pkg/config"
	"github.com/yurifrl/dkbparse/pkg/server"
	"github.com/yurifrl/dkbparse/pkg/service"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "dkbparse-server",
	})

	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	port := flags.String("port", "3000", "Server port")
	cfgFile := flags.StringP("config", "c", "", "Config file")
	flags.String("log-level", "info", "Log level")
	flags.Int("workers", 1, "Parallel statement workers")
	flags.String("rules", "", "Label rules file")
	flags.Bool("use-custom-id", false, "Match YNAB transactions by the id stored in the memo")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Build(*cfgFile, flags)
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal("invalid log level", "level", cfg.LogLevel, "err", err)
	}
	logger.SetLevel(level)

	processor, err := service.NewProcessor(cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up processor", "err", err)
	}

	srv := server.New(cfg, logger, processor)
	addr := fmt.Sprintf("0.0.0.0:%s", *port)
	logger.Info("starting server", "addr", addr)
	if err := srv.Start(addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
