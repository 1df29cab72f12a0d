package main

import (
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/theplant/datahub/config"
	"github.com/theplant/datahub/internal/logging"
)

var jsonOut = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "dhq",
		Short:         "Parse and run datahub queries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file; DATAHUB_* environment variables override it")

	root.AddCommand(
		a.newParseCmd(),
		a.newRunCmd(),
		a.newSavedCmd(),
	)
	return root
}

func (a *app) writeJSON(cmd *cobra.Command, v any) error {
	data, err := jsonOut.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeLine(cmd, data)
}

func writeLine(cmd *cobra.Command, data []byte) error {
	out := cmd.OutOrStdout()
	if _, err := out.Write(data); err != nil {
		return err
	}
	_, err := out.Write([]byte("\n"))
	return err
}
