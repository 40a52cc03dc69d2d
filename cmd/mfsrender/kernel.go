package main

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/kernel"
)

// kernelDump is the serialized form of a jitter kernel.
type kernelDump struct {
	Strategy     string       `toml:"strategy" yaml:"strategy"`
	Seed         uint64       `toml:"seed" yaml:"seed"`
	Frames       int          `toml:"frames" yaml:"frames"`
	AntiAliasing [][2]float32 `toml:"anti_aliasing" yaml:"anti_aliasing"`
	DepthOfField [][2]float32 `toml:"depth_of_field" yaml:"depth_of_field"`
	Shadow       [][2]float32 `toml:"shadow" yaml:"shadow"`
}

func pairs(samples []mgl32.Vec2) [][2]float32 {
	out := make([][2]float32, len(samples))
	for i, s := range samples {
		out[i] = [2]float32(s)
	}
	return out
}

func writeKernel(w io.Writer, d kernelDump, format string) error {
	switch format {
	case "toml":
		return toml.NewEncoder(w).Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		if _, err := fmt.Fprintf(w, "# %s seed=%d frames=%d\n# frame aa.x aa.y dof.x dof.y shadow.x shadow.y\n", d.Strategy, d.Seed, d.Frames); err != nil {
			return err
		}
		for i := range d.Frames {
			aa, dof, sh := d.AntiAliasing[i], d.DepthOfField[i], d.Shadow[i]
			if _, err := fmt.Fprintf(w, "%d %.6f %.6f %.6f %.6f %.6f %.6f\n", i+1, aa[0], aa[1], dof[0], dof[1], sh[0], sh[1]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown output format %q", common.ErrConfiguration, format)
}

func newKernelCommand() *cobra.Command {
	var (
		frames   int
		strategy string
		seed     uint64
		format   string
	)
	cmd := &cobra.Command{
		Use:   "kernel",
		Short: "Print the jitter kernel used for a frame count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := kernel.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			k, err := kernel.NewGenerator(kernel.WithStrategy(s), kernel.WithSeed(seed)).Generate(frames)
			if err != nil {
				return err
			}
			return writeKernel(cmd.OutOrStdout(), kernelDump{
				Strategy:     s.String(),
				Seed:         seed,
				Frames:       k.Len(),
				AntiAliasing: pairs(k.AntiAliasing),
				DepthOfField: pairs(k.DepthOfField),
				Shadow:       pairs(k.Shadow),
			}, format)
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 16, "number of frames")
	cmd.Flags().StringVar(&strategy, "strategy", "halton", "sampling strategy: halton, random or none")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, yaml or toml")
	return cmd
}
