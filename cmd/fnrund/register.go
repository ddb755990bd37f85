package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nimbusrun/fnrun/internal/spec"
	"github.com/nimbusrun/fnrun/internal/store"
)

func registerCmd() *cobra.Command {
	var prewarm bool

	cmd := &cobra.Command{
		Use:   "register <manifest.yaml>",
		Short: "register one or more functions from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ms, err := spec.ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var functions *store.FunctionStore
			var sys *system
			if prewarm {
				sys, err = buildSystem(ctx, cfg)
				if err != nil {
					return err
				}
				defer sys.close()
				functions = sys.storePool.FunctionStore()
			} else {
				pool, err := store.Open(ctx, cfg.Postgres.DSN)
				if err != nil {
					return fmt.Errorf("connect to store: %w", err)
				}
				defer pool.Close()
				functions = pool.FunctionStore()
			}

			for _, s := range ms.Functions {
				fn, err := s.ToFunction(uuid.New().String())
				if err != nil {
					return fmt.Errorf("%s: %w", s.Name, err)
				}
				if err := functions.Save(ctx, fn); err != nil {
					return fmt.Errorf("save %s: %w", fn.Name, err)
				}
				fmt.Printf("registered %s (%s) -> %s\n", fn.Name, fn.ID, fn.Route)

				if prewarm {
					for _, backend := range sys.registry.Backends() {
						ex, err := sys.registry.Get(backend)
						if err != nil {
							return fmt.Errorf("%s: %w", fn.Name, err)
						}
						if err := ex.Prewarm(ctx, fn); err != nil {
							return fmt.Errorf("prewarm %s on %s: %w", fn.Name, backend, err)
						}
					}
					fmt.Printf("prewarmed %s\n", fn.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prewarm, "prewarm", false, "eagerly build images and pre-warm the standard backend's pool for every registered function (off by default so the first invocation after register still reports warm_start=false, matching the cold-start example)")
	return cmd
}
