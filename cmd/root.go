// Package cmd assembles the CLI.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/automixer/automix-go/cmd/analyze"
	"github.com/automixer/automix-go/cmd/serve"
	"github.com/automixer/automix-go/internal/conf"
	"github.com/automixer/automix-go/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "automix",
		Short:   "automix-go automated DJ mix service",
		Version: fmt.Sprintf("%s (built %s)", settings.Version, settings.BuildDate),
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		analyze.Command(settings),
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
	}

	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d",
		viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Analysis.FfmpegPath, "ffmpeg",
		viper.GetString("analysis.ffmpegpath"), "Path to the ffmpeg binary")
	rootCmd.PersistentFlags().StringVar(&settings.Analysis.FfprobePath, "ffprobe",
		viper.GetString("analysis.ffprobepath"), "Path to the ffprobe binary")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logging.Error("error binding flags", "error", err)
	}
}
