package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/maauso/jumpcut/internal/config"
	"github.com/maauso/jumpcut/internal/jumpcut"
	"github.com/maauso/jumpcut/internal/plan"
)

// cutFlags are the cut option flags. Unchanged flags keep the configured
// defaults.
type cutFlags struct {
	mode           string
	threshold      float64
	minSilence     float64
	speed          float64
	extendTrailing bool
}

func (f *cutFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", string(jumpcut.DefaultMode), "What to do with silence: remove or speed")
	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", jumpcut.DefaultSilenceThresholdDB, "Silence threshold in dB")
	cmd.Flags().Float64Var(&f.minSilence, "min-silence", jumpcut.DefaultMinSilenceDuration, "Shortest silence to cut, in seconds")
	cmd.Flags().Float64VarP(&f.speed, "speed", "s", jumpcut.DefaultSpeedFactor, "Playback rate of silence in speed mode")
	cmd.Flags().BoolVar(&f.extendTrailing, "extend-trailing", false, "Treat silence still open at the end of the input as running to the end")
}

func (f *cutFlags) options(cmd *cobra.Command, cfg *config.Config) (jumpcut.Options, error) {
	opts := cfg.CutOptions()
	if cmd.Flags().Changed("mode") {
		mode, err := plan.ParseMode(f.mode)
		if err != nil {
			return jumpcut.Options{}, fmt.Errorf("%w: %w", jumpcut.ErrInvalidArgument, err)
		}
		opts.Mode = mode
	}
	if cmd.Flags().Changed("threshold") {
		opts.SilenceThresholdDB = f.threshold
	}
	if cmd.Flags().Changed("min-silence") {
		opts.MinSilenceDuration = f.minSilence
	}
	if cmd.Flags().Changed("speed") {
		opts.SpeedFactor = f.speed
	}
	opts.ExtendTrailingSilence = f.extendTrailing
	return opts, nil
}

// prepare resolves the options and builds the cutter for a command run.
func prepare(ctx *commandContext, cmd *cobra.Command, flags *cutFlags) (cutter, jumpcut.Options, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, jumpcut.Options{}, err
	}
	opts, err := flags.options(cmd, cfg)
	if err != nil {
		return nil, jumpcut.Options{}, err
	}
	c, err := ctx.newCutter(cfg, cfg.NewLoggerTo(cmd.ErrOrStderr()))
	if err != nil {
		return nil, jumpcut.Options{}, fmt.Errorf("create cutter: %w", err)
	}
	return c, opts, nil
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	flags := &cutFlags{}

	cmd := &cobra.Command{
		Use:   "process <input> <output>",
		Short: "Write a jump-cut copy of input to output",
		Long: "Detects silence in input and writes output with the silence removed or sped up.\n" +
			"The output container follows the output file extension.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, opts, err := prepare(ctx, cmd, flags)
			if err != nil {
				return err
			}

			res, err := c.Process(cmd.Context(), jumpcut.Request{
				Input:   args[0],
				Output:  args[1],
				Options: opts,
			})
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), args[1], res)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	flags := &cutFlags{}
	var showGraph bool

	cmd := &cobra.Command{
		Use:   "plan <input>",
		Short: "Show the segments a cut would produce without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, opts, err := prepare(ctx, cmd, flags)
			if err != nil {
				return err
			}

			res, err := c.Plan(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSegments(res.Plan))
			printSummary(out, "", res)
			if showGraph {
				fmt.Fprintln(out)
				fmt.Fprintln(out, describeGraph(res))
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&showGraph, "graph", true, "Print the ffmpeg filter graph")
	return cmd
}

func printSummary(w io.Writer, output string, res *jumpcut.Result) {
	p := res.Plan
	if output != "" {
		fmt.Fprintf(w, "Wrote %s\n", output)
	}
	fmt.Fprintf(w, "Mode:      %s\n", p.Mode)
	fmt.Fprintf(w, "Silences:  %d\n", len(res.Silences))
	fmt.Fprintf(w, "Segments:  %d\n", len(p.Segments))
	fmt.Fprintf(w, "Duration:  %s -> %s (-%s)\n",
		formatSeconds(res.Duration), formatSeconds(p.OutputDuration()), formatSeconds(p.RemovedDuration()))
	if res.Passthrough {
		fmt.Fprintln(w, "Nothing to cut, input copied unchanged")
	}
}

func describeGraph(res *jumpcut.Result) string {
	if res.Graph == nil {
		return "Filter graph: none (passthrough)"
	}
	return "Filter graph:\n" + res.Graph.String()
}
