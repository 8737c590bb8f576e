package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/wikicrawl/internal/config"
)

// CLI is the command-line interface
type CLI struct {
	Config string `help:"Path to configuration file (default ${default_config})" short:"c" type:"path"`
	Debug  bool   `help:"Enable debug logging"`

	Crawl   CrawlCmd   `cmd:"" help:"Crawl the wiki through its sidebar and save every page."`
	Extract ExtractCmd `cmd:"" help:"Extract a single page and save its record."`
	Index   IndexCmd   `cmd:"" help:"Embed the collected pages into the vector index."`
	Search  SearchCmd  `cmd:"" help:"Search the vector index."`
}

// App is what every command runs against
type App struct {
	ctx context.Context
	cfg *config.Config
	log *log.Logger
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("wikicrawl"),
		kong.Description("Crawl a sidebar-navigated wiki and index its pages for search."),
		kong.UsageOnError(),
		kong.Vars{"default_config": config.DefaultConfigFile},
	)
}

func newLogger(debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "wikicrawl",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOrDefault(config.DefaultConfigFile, false)
	}
	return config.LoadOrDefault(path, true)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		log.Fatal("Building command line", "err", err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logger := newLogger(cli.Debug)
	log.SetDefault(logger)

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		logger.Fatal("Loading configuration", "path", cli.Config, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = kctx.Run(&App{ctx: ctx, cfg: cfg, log: logger})
	stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted")
			os.Exit(130)
		}
		logger.Error("Command failed", "command", kctx.Command(), "err", err)
		os.Exit(1)
	}
}
