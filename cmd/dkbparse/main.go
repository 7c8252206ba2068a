package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/dkbparse/pkg/config"
	"github.com/yurifrl/dkbparse/pkg/service"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "dkbparse",
	})

	var outputPath, rules, annotations string
	var workers int
	var debug bool
	flag.StringVar(&outputPath, "o", "", "Output CSV file (default: stdout)")
	flag.StringVar(&rules, "rules", "", "Label rules file")
	flag.StringVar(&annotations, "annotations", "", "Annotation file")
	flag.IntVar(&workers, "workers", 1, "Parallel statement workers")
	flag.BoolVar(&debug, "debug", false, "Log every classified line")
	flag.Parse()

	dirs := flag.Args()
	if len(dirs) == 0 {
		logger.Error("invalid usage", "args", dirs)
		fmt.Fprintf(os.Stderr, "Usage: dkbparse [-o file] [-rules file] <directory>...\n")
		os.Exit(1)
	}
	if debug {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := config.New(outputPath)
	cfg.Rules = rules
	cfg.Annotations = annotations
	cfg.Workers = workers
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	processor, err := service.NewProcessor(cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up processor", "err", err)
	}

	res, err := processor.ProcessDirectories(context.Background(), dirs...)
	if err != nil {
		logger.Fatal("processing failed", "err", err)
	}

	if err := writeOutput(cfg.GetOutputPath(), func(w io.Writer) error {
		return processor.WriteCSV(w, res, nil)
	}); err != nil {
		logger.Fatal("failed to write csv", "err", err)
	}

	for _, f := range res.Failures {
		logger.Warn("statement skipped", "file", f.Path, "err", f.Err)
	}
	if len(res.Failures) > 0 || len(res.Discrepancies) > 0 {
		os.Exit(2)
	}
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
