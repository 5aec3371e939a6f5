package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(nil)
}

func newRootCommandWith(factory cutterFactory) *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags, factory)

	rootCmd := &cobra.Command{
		Use:   "jumpcut",
		Short: "Cut or speed up the silent parts of audio and video",
		Long: "jumpcut detects silence with ffmpeg and either removes it or plays it faster.\n" +
			"Defaults come from the environment (SILENCE_THRESHOLD_DB, MIN_SILENCE_DURATION,\n" +
			"SPEED_FACTOR, DEFAULT_MODE, FFMPEG_PATH, FFPROBE_PATH, LOG_LEVEL, LOG_FORMAT).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.ffmpegPath, "ffmpeg", "", "Path to the ffmpeg binary")
	rootCmd.PersistentFlags().StringVar(&flags.ffprobePath, "ffprobe", "", "Path to the ffprobe binary")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newPlanCommand(ctx))

	return rootCmd
}
