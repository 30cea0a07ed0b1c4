package main

import (
	"context"

	"investment-chat/internal/app"
	"investment-chat/internal/common/config"
	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "investment-chat",
		Short:         "Chat over startup investment updates",
		Long:          "Answers natural-language questions about portfolio companies from a local investment-updates dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAskCommand(opts))
	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewCompaniesCommand(opts))
	cmd.AddCommand(NewToolsCommand())

	return cmd
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFromFile(opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, apperrors.NewConfigInvalidError(err.Error())
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	return cfg, nil
}

// bootstrap loads configuration and builds the pipeline. Interactive commands
// default to warn-level logs so stderr stays quiet.
func bootstrap(ctx context.Context, opts *RootOptions, interactive bool) (*app.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if interactive && opts.LogLevel == "" {
		cfg.Logging.Level = "warn"
	}

	log := logger.NewZapAdapter(logger.New(cfg.Logging.Level, cfg.Logging.Format))
	return app.New(ctx, cfg, log)
}
