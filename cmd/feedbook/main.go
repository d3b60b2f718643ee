package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/feedbook/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		recipePath string
		outPath    string
		pdfPath    string
		userAgent  string
		timeout    time.Duration
		schedule   string
		verbose    bool
	)

	flag.StringVar(&recipePath, "recipe", "recipe.yaml", "Path to the publication recipe (YAML or JSON)")
	flag.StringVar(&outPath, "out", "book.html", "Path to write the XHTML volume")
	flag.StringVar(&pdfPath, "pdf", "", "Optional path to write a PDF rendition")
	flag.StringVar(&userAgent, "ua", "", "Custom User-Agent for feed and article requests")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "Per-request timeout")
	flag.StringVar(&schedule, "schedule", "", "Cron expression for periodic builds; empty builds once and exits")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := app.Config{
		RecipePath: recipePath,
		OutputPath: outPath,
		PDFPath:    pdfPath,
		UserAgent:  userAgent,
		Timeout:    timeout,
		Verbose:    verbose,
	}

	if schedule == "" {
		if err := runOnce(context.Background(), cfg); err != nil {
			log.Error().Err(err).Msg("run failed")
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := runOnce(context.Background(), cfg); err != nil {
			log.Error().Err(err).Msg("scheduled run failed")
		}
	}); err != nil {
		log.Error().Err(err).Str("schedule", schedule).Msg("invalid schedule")
		os.Exit(2)
	}
	log.Info().Str("schedule", schedule).Msg("building on schedule")
	c.Run()
}

func runOnce(ctx context.Context, cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
