package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/devprofile/internal/companion"
	"github.com/danmuck/devprofile/internal/logging"
	"github.com/danmuck/devprofile/internal/observability"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "devprofiled: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseArgs(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logging.ConfigureRuntime()
	observability.InitLogger(cfg.Name)
	svc, err := companion.NewService(cfg)
	if err != nil {
		return err
	}
	return svc.Run()
}

// parseArgs layers flags over the optional TOML file over defaults.
func parseArgs(args []string) (companion.ServiceConfig, error) {
	var configFile, socketPath, documentPath, metricsAddr string

	flagSet := pflag.NewFlagSet("devprofiled", pflag.ContinueOnError)
	flagSet.StringVarP(&configFile, "config", "c", "", "path to devprofiled TOML config")
	flagSet.StringVar(&socketPath, "socket", "", "unix socket path (overrides socket_path)")
	flagSet.StringVar(&documentPath, "document", "", "device profile document (overrides config_path)")
	flagSet.StringVar(&metricsAddr, "metrics-addr", "", "diagnostics listen address (overrides metrics_addr)")
	if err := flagSet.Parse(args); err != nil {
		return companion.ServiceConfig{}, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return companion.ServiceConfig{}, fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg := companion.DefaultServiceConfig()
	if path := strings.TrimSpace(configFile); path != "" {
		loaded, err := loadServiceConfig(path)
		if err != nil {
			return companion.ServiceConfig{}, err
		}
		cfg = loaded
	}
	if flagSet.Changed("socket") {
		cfg.SocketPath = strings.TrimSpace(socketPath)
	}
	if flagSet.Changed("document") {
		cfg.ConfigPath = strings.TrimSpace(documentPath)
	}
	if flagSet.Changed("metrics-addr") {
		cfg.MetricsAddr = strings.TrimSpace(metricsAddr)
	}
	return cfg, nil
}
