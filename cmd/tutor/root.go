package main

import (
	"github.com/dkeye/Tutor/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tutor",
		Short:         "Tutoring session client: media, pointer and chat over one channel",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config/config.$CONFIG_ENV.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		} else {
			log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
		}
		return cfg, cfg.Validate()
	}

	rootCmd.AddCommand(
		newRunCmd(load),
		newCheckConfigCmd(load),
	)
	return rootCmd
}
