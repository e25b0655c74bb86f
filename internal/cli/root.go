package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-player/internal/config"
	"quiz-player/internal/logging"
)

type rootOptions struct {
	configPath string
	debug      bool
	logFile    string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "quiz-player",
		Short:         "Timed quiz player and its development backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newQuizzesCmd(opts))
	cmd.AddCommand(newPlayCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newResultCmd(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	var outputs []string
	if o.logFile != "" {
		outputs = append(outputs, o.logFile)
	}
	logger, err := logging.New(o.debug, outputs...)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}
