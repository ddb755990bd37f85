package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusrun/fnrun/internal/domain"
)

func invokeCmd() *cobra.Command {
	var backendFlag string
	var payload string

	cmd := &cobra.Command{
		Use:   "invoke <function-id>",
		Short: "invoke one registered function and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			sys, err := buildSystem(ctx, cfg)
			if err != nil {
				return err
			}
			defer sys.close()

			fn, err := sys.storePool.FunctionStore().Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load function: %w", err)
			}

			backendTag := domain.BackendTag(backendFlag)
			if backendTag == "" {
				backendTag = domain.BackendStandard
			}

			res, err := sys.coord.Invoke(ctx, fn, backendTag, []byte(payload))
			if err != nil {
				return fmt.Errorf("invoke: %w", err)
			}

			fmt.Printf("execution %s (%dms): %s\n", res.ExecutionID, res.DurationMs, res.Result)
			return nil
		},
	}
	cmd.Flags().StringVar(&backendFlag, "backend", string(domain.BackendStandard), "execution backend (standard or sandbox)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON event payload")
	return cmd
}
