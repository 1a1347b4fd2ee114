package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/fightlog/internal/replay"
	"github.com/okian/fightlog/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "fightlog-replay",
		Short: "Replay combat event streams through the encounter engine",
		Long: `fightlog-replay reconstructs encounters from NDJSON event streams.

It can replay a file offline, generate a synthetic stream, or post a
stream to a running fightlog server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
				return err
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			return logger.SetLevelString(level)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity to stderr")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(newRunCmd(), newGenerateCmd(), newPostCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var cfg replay.RunConfig
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay an event file offline and summarize finished encounters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sum, err := replay.Run(ctx, cfg, logger.Get().Named("replay"))
			if err != nil {
				return err
			}
			return replay.PrintSummary(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().StringVar(&cfg.EventsPath, "events", "", "NDJSON event file to replay")
	cmd.Flags().StringVar(&cfg.TemplatesPath, "templates", "", "Raid template YAML file")
	cmd.Flags().StringVar(&cfg.SpellsPath, "spells", "", "Spell catalog YAML file")
	cmd.Flags().StringVar(&cfg.OutPath, "out", "", "Append finished records to this NDJSON file")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		cfg replay.GenerateConfig
		out string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic event stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			events := replay.Generate(cfg)
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return replay.Write(w, events)
		},
	}
	cmd.Flags().IntVar(&cfg.Fights, "fights", 10, "Number of fights")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "Random seed")
	cmd.Flags().StringSliceVar(&cfg.Party, "party", nil, "Party members, the first one owns the log")
	cmd.Flags().StringVar(&cfg.Zone, "zone", "", "Zone name")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newPostCmd() *cobra.Command {
	var (
		cfg    replay.PostConfig
		events string
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Send an event file to a running server in order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			evs, err := replay.ReadFile(events)
			if err != nil {
				return err
			}
			p := replay.NewPoster(cfg, logger.Get().Named("poster"))
			if err := p.CheckHealth(ctx); err != nil {
				return err
			}
			stats, err := p.Post(ctx, evs)
			fmt.Fprintf(cmd.OutOrStdout(), "posted %d/%d events in %d batches (%d retries)\n",
				stats.Accepted, len(evs), stats.Batches, stats.Retries)
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the server")
	cmd.Flags().StringVar(&events, "events", "", "NDJSON event file to post")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch", 500, "Events per request")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	cmd.Flags().IntVar(&cfg.MaxRetries, "retries", 5, "Retries of a batch refused for backpressure")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}
