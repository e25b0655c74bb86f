// Package render draws the player screens as plain terminal text.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"quiz-player/internal/domain"
	"quiz-player/internal/player"
)

const gaugeSegments = 20

// Options tunes the quiz view.
type Options struct {
	// TimerReference is the gauge maximum used when the question carries no effective timer.
	TimerReference int
}

// Quiz draws the quiz-taking screen for one snapshot.
func Quiz(w io.Writer, snap player.Snapshot, opts Options) error {
	var b strings.Builder
	switch {
	case snap.Phase == player.PhaseLoading:
		b.WriteString("Loading quiz...\n")
	case snap.Phase == player.PhaseLoadFailed:
		b.WriteString("Could not load the quiz.\n")
		if snap.Error != "" {
			fmt.Fprintf(&b, "%s\n", snap.Error)
		}
		b.WriteString("\nPress r to retry, q to quit.\n")
	case snap.Phase == player.PhaseFinished:
		b.WriteString("Quiz finished! Loading your results...\n")
	case snap.Ended():
		header(&b, snap)
		b.WriteString("\nThis quiz session has ended.\n")
		if snap.State.Detail != "" {
			fmt.Fprintf(&b, "%s\n", snap.State.Detail)
		}
		b.WriteString("\nPress q to leave.\n")
	default:
		active(&b, snap, opts)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func header(b *strings.Builder, snap player.Snapshot) {
	title := snap.State.QuizTitle
	if title == "" {
		title = "Quiz"
	}
	fmt.Fprintf(b, "%s    Score: %d\n", title, snap.State.Score)
}

func active(b *strings.Builder, snap player.Snapshot, opts Options) {
	header(b, snap)
	q := snap.State.Question
	if q == nil {
		b.WriteString("\nWaiting for the next question...\n")
		return
	}

	reference := q.EffectiveTimer
	if reference <= 0 {
		reference = opts.TimerReference
	}
	fmt.Fprintf(b, "%s %2ds\n\n", Gauge(snap.TimeLeft, reference), snap.TimeLeft)
	fmt.Fprintf(b, "Question %d (%s)\n%s\n\n", q.Order, points(q.EffectivePoints), q.Question.Text)

	enabled := snap.ChoicesEnabled()
	for i, choice := range q.Question.Content.Choices {
		if enabled {
			fmt.Fprintf(b, "  %d) %s\n", i+1, choice)
		} else {
			fmt.Fprintf(b, "  -) %s\n", choice)
		}
	}
	b.WriteString("\n")

	switch {
	case snap.Submitting:
		b.WriteString("Submitting...\n")
	case snap.Stale, snap.Error != "" && snap.TimeLeft <= 0:
		// Only a re-fetch can move on once time is up.
		fmt.Fprintf(b, "! %s Press r to retry.\n", snap.Error)
	case snap.Error != "":
		fmt.Fprintf(b, "! %s\n", snap.Error)
	}
	switch {
	case enabled:
		fmt.Fprintf(b, "Press 1-%d to answer, q to quit.\n", len(q.Question.Content.Choices))
	case snap.TimeLeft <= 0 && !snap.Submitting && !snap.Stale:
		b.WriteString("Time is up.\n")
	}
}

func points(n int) string {
	if n == 1 {
		return "1 pt"
	}
	return fmt.Sprintf("%d pts", n)
}

// Gauge draws the countdown ring as a fixed-width bar. timeLeft above
// reference draws a full gauge; the scale is approximate by nature.
func Gauge(timeLeft, reference int) string {
	filled := 0
	if reference > 0 && timeLeft > 0 {
		filled = (timeLeft*gaugeSegments + reference - 1) / reference
		if filled > gaugeSegments {
			filled = gaugeSegments
		}
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", gaugeSegments-filled) + "]"
}

// Results draws the completed-participation screen.
func Results(w io.Writer, p domain.Participation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Results: %s\n", p.QuizTitle)
	fmt.Fprintf(&b, "Final score: %d\n", p.FinalScore)
	if !p.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "Completed: %s\n", p.CompletedAt.Local().Format(time.RFC1123))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Quizzes lists the published quizzes.
func Quizzes(w io.Writer, quizzes []domain.PublishedQuiz) error {
	if len(quizzes) == 0 {
		_, err := io.WriteString(w, "No published quizzes.\n")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tDESCRIPTION")
	for _, q := range quizzes {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", q.ID, q.Title, q.QuestionCount, q.Description)
	}
	return tw.Flush()
}

// History lists completed participations.
func History(w io.Writer, list []domain.Participation) error {
	if len(list) == 0 {
		_, err := io.WriteString(w, "No completed quizzes yet.\n")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUIZ\tSCORE\tCOMPLETED")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", p.ID, p.QuizTitle, p.FinalScore, p.CompletedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
