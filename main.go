package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"shortsmith/common"
	"shortsmith/pipelines/shorts"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("shortsmith", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config (default: ./"+common.DefaultConfigFile+" if present)")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	pretty := fs.Bool("pretty", true, "Human-readable console logs instead of JSON")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shortsmith [flags] [run]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	common.SetupLogging(*logLevel, *pretty)

	if rest := fs.Args(); len(rest) > 1 || (len(rest) == 1 && rest[0] != "run") {
		fs.Usage()
		return exitConfig
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gemini, err := common.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Gemini client")
		return exitConfig
	}
	defer gemini.Close()

	var recorder shorts.RunRecorder
	if cfg.LedgerPath != "" {
		ledger, err := common.OpenRunLedger(ctx, cfg.LedgerPath)
		if err != nil {
			// history is optional; the run proceeds without it
			log.Warn().Err(err).Str("path", cfg.LedgerPath).Msg("Run ledger unavailable")
		} else {
			defer ledger.Close()
			recorder = ledger
		}
	}

	fetcher := shorts.NewAssetFetcher(cfg, shorts.NewPexelsClient(cfg), shorts.GocvProber{})
	compositor := shorts.NewCompositor(cfg, shorts.NewCaptionLayer(cfg))
	pipeline := shorts.NewPipeline(cfg, gemini, shorts.NewEdgeTTS(cfg), fetcher, compositor, recorder)

	artifact, err := pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, common.ErrConfig) {
			return exitConfig
		}
		return exitFailed
	}

	fmt.Println(artifact.Path)
	return exitOK
}
