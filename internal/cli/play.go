package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-player/internal/config"
	"quiz-player/internal/domain"
	"quiz-player/internal/player"
	"quiz-player/internal/render"
	transport "quiz-player/internal/transport/http"
)

const clearScreen = "\033[H\033[2J"

var errQuit = errors.New("quit")

func newPlayCmd(opts *rootOptions) *cobra.Command {
	flags := &clientFlags{}
	var (
		quizID  int64
		lobbyID string
		noPush  bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take a timed quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (quizID == 0) == (lobbyID == "") {
				return errors.New("exactly one of --quiz or --lobby is required")
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			flags.apply(&cfg)
			if noPush {
				cfg.Player.Push = false
			}
			return runPlay(cmd.Context(), cfg, logger, playTarget{quizID: quizID, lobbyID: lobbyID},
				cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().Int64Var(&quizID, "quiz", 0, "start a new solo run of this quiz")
	cmd.Flags().StringVar(&lobbyID, "lobby", "", "resume an existing lobby")
	cmd.Flags().BoolVar(&noPush, "no-push", false, "do not subscribe to lobby events")
	return cmd
}

type playTarget struct {
	quizID  int64
	lobbyID string
}

func runPlay(ctx context.Context, cfg config.Config, logger *zap.Logger, target playTarget, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := newAPIClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	lobbyID := target.lobbyID
	if lobbyID == "" {
		joined, err := client.JoinLobby(ctx, target.quizID)
		if err != nil {
			return fmt.Errorf("join quiz %d: %w", target.quizID, err)
		}
		lobbyID = joined.LobbyID
		logger.Info("joined lobby", zap.String("lobby_id", lobbyID), zap.String("code", joined.Code))
	}

	var events <-chan domain.LobbyEvent
	if cfg.Player.Push {
		events, err = transport.NewNotifier(client, logger).Subscribe(ctx, lobbyID)
		if err != nil {
			// Polling on submit still works without push.
			logger.Warn("lobby events unavailable", zap.Error(err))
			events = nil
		}
	}

	results := make(chan int64, 1)
	session := player.New(lobbyID, client, player.Options{
		Logger: logger,
		Navigator: player.NavigatorFunc(func(id int64) {
			results <- id
		}),
		Events:         events,
		RequestTimeout: config.TTLDuration(cfg.Player.RequestTimeout, 0),
	})
	session.Start(ctx)
	defer session.Stop()

	updates, stopUpdates := session.Updates()
	defer stopUpdates()

	viewOpts := render.Options{TimerReference: cfg.Player.TimerReference}
	lines := readLines(ctx, in)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case snap, ok := <-updates:
				if !ok {
					return nil
				}
				if err := drawQuiz(out, snap, viewOpts); err != nil {
					return err
				}
				if snap.Phase == player.PhaseFinished {
					return nil
				}
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-session.Finished():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if handleInput(session, line) {
					return errQuit
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}

	select {
	case id := <-results:
		p, err := client.Participation(ctx, id)
		if err != nil {
			return fmt.Errorf("load results: %w", err)
		}
		fmt.Fprint(out, clearScreen)
		return render.Results(out, p)
	default:
		fmt.Fprintf(out, "\nLeft lobby %s. Resume with: quiz-player play --lobby %s\n", lobbyID, lobbyID)
		return nil
	}
}

func drawQuiz(out io.Writer, snap player.Snapshot, opts render.Options) error {
	if _, err := io.WriteString(out, clearScreen); err != nil {
		return err
	}
	return render.Quiz(out, snap, opts)
}

// handleInput applies one input line and reports whether the player quit.
func handleInput(session *player.Session, line string) bool {
	line = strings.TrimSpace(strings.ToLower(line))
	switch line {
	case "":
		return false
	case "q", "quit":
		return true
	case "r", "retry":
		session.Retry()
		return false
	}
	if n, err := strconv.Atoi(line); err == nil && n > 0 {
		session.Answer(n - 1)
	}
	return false
}

// readLines feeds input lines to a channel until ctx ends. A read blocked
// on the terminal is not interruptible; that goroutine exits with the process.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
