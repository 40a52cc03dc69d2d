package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/painter"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
)

func parseBackend(name string) (renderer.RendererBackendType, error) {
	for _, b := range []renderer.RendererBackendType{renderer.BackendTypeSoftware, renderer.BackendTypeWGPU} {
		if b.String() == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown backend %q", common.ErrConfiguration, name)
}

func newRenderCommand() *cobra.Command {
	var (
		flags         pipelineFlags
		width, height int
		output        string
		backend       string
		workers       int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a scene offscreen until it converges and write the image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := renderer.ImageFormatFor(output); err != nil {
				return err
			}
			bt, err := parseBackend(backend)
			if err != nil {
				return err
			}
			scene, options, err := flags.build()
			if err != nil {
				return err
			}

			r, err := renderer.NewRenderer(bt, renderer.WithSize(width, height), renderer.WithWorkers(workers))
			if err != nil {
				return err
			}
			defer r.Release()

			p, err := painter.NewMultiFramePainter(r, scene, options...)
			if err != nil {
				return err
			}
			defer p.Release()

			start := time.Now()
			var res painter.Result
			for !res.Converged {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if res, err = p.Paint(); err != nil {
					return err
				}
			}

			img, err := renderer.ReadImage(r, r.Screen().Color()[0])
			if err != nil {
				return err
			}
			if err := renderer.WriteImage(output, img); err != nil {
				return err
			}
			elapsed := time.Since(start)
			logger.For("mfsrender").Info("image written", "path", output, "frames", res.Frame, "elapsed", elapsed)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d, %d samples, %s\n", output, width, height, res.Frame, elapsed.Round(time.Millisecond))
			return err
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&width, "width", 640, "image width in pixels")
	cmd.Flags().IntVar(&height, "height", 480, "image height in pixels")
	cmd.Flags().StringVarP(&output, "output", "o", "out.png", "output file (.png, .jpg, .tiff or .bmp)")
	cmd.Flags().StringVar(&backend, "backend", "software", "renderer backend: software or wgpu")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "software backend worker count")
	return cmd
}
