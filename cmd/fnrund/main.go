// Command fnrund is the composition root for the execution subsystem: it
// wires the image builder, container pool, per-backend executors, registry,
// metrics collector, and invocation coordinator together, then exposes them
// either as a one-shot CLI action or as a long-running HTTP daemon.
package main

import (
	"fmt"
	"os"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"

	"github.com/nimbusrun/fnrun/internal/config"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "fnrund",
		Short: "fnrund runs the serverless execution subsystem",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a JSON config file overlaying the defaults")

	root.AddCommand(registerCmd(), invokeCmd(), serveMetricsCmd(), metricsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func newDockerClient(cfg *config.Config) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Docker.Host != "" {
		opts = append(opts, client.WithHost(cfg.Docker.Host))
	}
	return client.NewClientWithOpts(opts...)
}
