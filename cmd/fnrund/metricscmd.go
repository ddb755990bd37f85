package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusrun/fnrun/internal/metrics"
	"github.com/nimbusrun/fnrun/internal/store"
)

func metricsCmd() *cobra.Command {
	var functionID string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "print aggregated invocation metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := store.Open(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect to store: %w", err)
			}
			defer pool.Close()

			rows, err := pool.MetricStore().GetAggregated(ctx, metrics.AggregationFilter{FunctionID: functionID})
			if err != nil {
				return fmt.Errorf("get aggregated metrics: %w", err)
			}

			for _, r := range rows {
				fmt.Printf("%s/%s: avg=%.1fms success_rate=%.2f%% warm=%d cold=%d total=%d\n",
					r.FunctionID, r.Backend, r.AvgDurationMs, 100*r.SuccessRate, r.WarmStartCount, r.ColdStartCount, r.TotalCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&functionID, "function", "", "restrict to one function ID")
	return cmd
}
