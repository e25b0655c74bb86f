package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-player/internal/config"
	"quiz-player/internal/render"
	transport "quiz-player/internal/transport/http"
)

// clientFlags override the player section of the config.
type clientFlags struct {
	baseURL string
	session string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "API root, e.g. http://localhost:8080/api")
	cmd.Flags().StringVar(&f.session, "session", "", "sessionid cookie identifying the player")
}

func (f *clientFlags) apply(cfg *config.Config) {
	if f.baseURL != "" {
		cfg.Player.BaseURL = f.baseURL
	}
	if f.session != "" {
		cfg.Player.Session = f.session
	}
}

func newAPIClient(ctx context.Context, cfg config.Config, logger *zap.Logger) (*transport.Client, error) {
	client, err := transport.NewClient(cfg.Player.BaseURL, cfg.Player.Session, 0, logger)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureCSRF(ctx); err != nil {
		return nil, fmt.Errorf("fetch csrf token: %w", err)
	}
	return client, nil
}

// clientCommand builds a one-shot command that talks to the API.
func clientCommand(opts *rootOptions, use, short string, args cobra.PositionalArgs,
	run func(cmd *cobra.Command, client *transport.Client, args []string) error) *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			flags.apply(&cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout(cfg, 15*time.Second))
			defer cancel()
			cmd.SetContext(ctx)

			client, err := newAPIClient(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return run(cmd, client, args)
		},
	}
	flags.register(cmd)
	return cmd
}

func requestTimeout(cfg config.Config, fallback time.Duration) time.Duration {
	return config.TTLDuration(cfg.Player.RequestTimeout, fallback)
}

func newQuizzesCmd(opts *rootOptions) *cobra.Command {
	return clientCommand(opts, "quizzes", "List published quizzes", cobra.NoArgs,
		func(cmd *cobra.Command, client *transport.Client, _ []string) error {
			quizzes, err := client.PublishedQuizzes(cmd.Context())
			if err != nil {
				return err
			}
			return render.Quizzes(cmd.OutOrStdout(), quizzes)
		})
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return clientCommand(opts, "history", "List your completed quizzes", cobra.NoArgs,
		func(cmd *cobra.Command, client *transport.Client, _ []string) error {
			list, err := client.MyParticipations(cmd.Context())
			if err != nil {
				return err
			}
			return render.History(cmd.OutOrStdout(), list)
		})
}

func newResultCmd(opts *rootOptions) *cobra.Command {
	return clientCommand(opts, "result <participation-id>", "Show the results of a completed quiz", cobra.ExactArgs(1),
		func(cmd *cobra.Command, client *transport.Client, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid participation id %q", args[0])
			}
			p, err := client.Participation(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render.Results(cmd.OutOrStdout(), p)
		})
}
