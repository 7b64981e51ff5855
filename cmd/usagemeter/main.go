// Package main is the entry point for the usagemeter service.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/artpar/usagemeter/bootstrap"
	"github.com/artpar/usagemeter/config"
	"github.com/rs/zerolog"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "usagemeter.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	hotReload := flag.Bool("hot-reload", true, "Enable hot reload of configuration")
	flag.Parse()

	if *showVersion {
		fmt.Printf("usagemeter %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if *validate {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration valid\n")
		fmt.Printf("  Daily limit: %d bytes\n", cfg.Quota.DailyLimitBytes)
		fmt.Printf("  User service: %s\n", cfg.Users.URL)
		fmt.Printf("  Storage service: %s\n", cfg.Storage.URL)
		os.Exit(0)
	}

	holder, err := loadHolder(*configPath, *hotReload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(holder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadHolder(path string, hotReload bool) (*config.Holder, error) {
	if _, err := os.Stat(path); err != nil {
		// No config file: fall back to environment variables.
		cfg, err := config.LoadWithFallback(path)
		if err != nil {
			return nil, err
		}
		fmt.Println("Running with environment variables (no config file)")
		return config.NewStaticHolder(cfg, zerolog.Nop()), nil
	}

	holder, err := config.NewHolder(path, zerolog.New(os.Stdout).With().Timestamp().Logger())
	if err != nil {
		return nil, err
	}
	if hotReload {
		if err := holder.WatchFile(); err != nil {
			return nil, err
		}
		holder.WatchSignals()
	}
	return holder, nil
}
