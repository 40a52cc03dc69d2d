package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-mfs/engine/preset"
)

func newPresetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "List and export the built-in presets",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the built-in preset names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range preset.Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a built-in preset as a file that --preset accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := preset.Builtin(args[0])
			if err != nil {
				return err
			}
			data, err := preset.Encode(p, preset.Format(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	show.Flags().StringVar(&format, "format", string(preset.FormatTOML), "output format: toml or yaml")

	cmd.AddCommand(list, show)
	return cmd
}
