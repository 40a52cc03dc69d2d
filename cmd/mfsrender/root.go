package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
)

func newRootCommand() *cobra.Command {
	var level, format string
	root := &cobra.Command{
		Use:           "mfsrender",
		Short:         "Progressive multi-frame sampling renderer",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(level)); err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			opts := &slog.HandlerOptions{Level: lvl}
			switch strings.ToLower(format) {
			case "text":
				logger.Set(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts)))
			case "json":
				logger.Set(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts)))
			default:
				return fmt.Errorf("unknown log format %q", format)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&format, "log-format", "text", "log format: text or json")

	root.AddCommand(newRenderCommand(), newViewCommand(), newKernelCommand(), newPresetCommand())
	return root
}
