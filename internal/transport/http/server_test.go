package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quiz-player/internal/app"
	"quiz-player/internal/domain"
	"quiz-player/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(memory.SampleQuizzes()), time.Minute)
	service := app.NewLobbyService(quizRepo, memory.NewLobbyStore(), memory.NewParticipationStore(), app.NewEventHub(), nil)
	server := httptest.NewServer(NewRouter(service, nil))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server, session string) *Client {
	t.Helper()
	client, err := NewClient(server.URL+"/api", session, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientPlaysQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)
	client := newTestClient(t, server, "u1")

	if err := client.EnsureCSRF(ctx); err != nil {
		t.Fatalf("csrf: %v", err)
	}
	if client.cookie(csrfCookie) == "" {
		t.Fatalf("expected csrftoken cookie in jar")
	}

	quizzes, err := client.PublishedQuizzes(ctx)
	if err != nil {
		t.Fatalf("quizzes: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != 1 {
		t.Fatalf("unexpected quizzes %+v", quizzes)
	}

	joined, err := client.JoinLobby(ctx, 1)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	state, err := client.GetLobbyState(ctx, joined.LobbyID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.Running() || state.QuizTitle != "Math" || len(state.Choices()) != 4 {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.TimeLeft <= 0 || state.TimeLeft > 20 {
		t.Fatalf("unexpected time_left %v", state.TimeLeft)
	}

	var res domain.SubmissionResult
	for _, idx := range []int{1, 1, 0} {
		i := idx
		res, err = client.SubmitAnswer(ctx, joined.LobbyID, &i)
		if err != nil {
			t.Fatalf("submit %d: %v", idx, err)
		}
	}
	if !res.Finished() || res.Score != 4 || res.ParticipationID == 0 {
		t.Fatalf("expected finished with score 4, got %+v", res)
	}

	p, err := client.Participation(ctx, res.ParticipationID)
	if err != nil {
		t.Fatalf("participation: %v", err)
	}
	if p.FinalScore != 4 || p.QuizTitle != "Math" {
		t.Fatalf("unexpected participation %+v", p)
	}
	mine, err := client.MyParticipations(ctx)
	if err != nil || len(mine) != 1 {
		t.Fatalf("unexpected history %+v err=%v", mine, err)
	}
}

func TestUnsafeRequestWithoutCSRFIsRejected(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server, "u1")

	_, err := client.JoinLobby(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != detailCSRF {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestErrorsMapToStatusAndDetail(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)
	owner := newTestClient(t, server, "u1")
	_ = owner.EnsureCSRF(ctx)
	joined, err := owner.JoinLobby(ctx, 1)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	other := newTestClient(t, server, "u2")
	anonymous := newTestClient(t, server, "")

	cases := []struct {
		name   string
		call   func() error
		status int
		msg    string
	}{
		{
			name: "foreign lobby",
			call: func() error {
				_, err := other.GetLobbyState(ctx, joined.LobbyID)
				return err
			},
			status: http.StatusForbidden,
			msg:    domain.ErrNotInLobby.Error(),
		},
		{
			name: "unknown lobby",
			call: func() error {
				_, err := owner.GetLobbyState(ctx, "missing")
				return err
			},
			status: http.StatusNotFound,
			msg:    domain.ErrLobbyNotFound.Error(),
		},
		{
			name: "no session",
			call: func() error {
				_, err := anonymous.GetLobbyState(ctx, joined.LobbyID)
				return err
			},
			status: http.StatusForbidden,
			msg:    detailNoCredentials,
		},
		{
			name: "draft quiz",
			call: func() error {
				_, err := owner.JoinLobby(ctx, 2)
				return err
			},
			status: http.StatusNotFound,
			msg:    domain.ErrQuizNotFound.Error(),
		},
		{
			name: "no active question",
			call: func() error {
				_, err := owner.SubmitAnswer(ctx, joined.LobbyID, nil)
				return err
			},
			status: http.StatusBadRequest,
			msg:    "no question is currently active",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr *APIError
			if err := tc.call(); !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Status != tc.status || apiErr.Message != tc.msg {
				t.Fatalf("got %d %q, want %d %q", apiErr.Status, apiErr.Message, tc.status, tc.msg)
			}
		})
	}
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	server := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/game/lobby/abc/submit/", strings.NewReader(`{"index":"two"}`))
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "u1"})
	req.AddCookie(&http.Cookie{Name: csrfCookie, Value: "tok"})
	req.Header.Set(csrfHeader, "tok")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestErrorMessagePrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail":"Lobby is not active.","error":"x"}`, "Lobby is not active."},
		{"error object", `{"error":{"message":"Quiz missing"}}`, "Quiz missing"},
		{"error string", `{"error":"boom"}`, "boom"},
		{"non field", `{"non_field_errors":["Already answered."]}`, "Already answered."},
		{"field error", `{"index":["Not a valid integer."],"answer":["Required."]}`, "answer: Required."},
		{"empty object", `{}`, "Request failed"},
		{"not json", `<html>502</html>`, "Request failed"},
		{"empty detail", `{"detail":""}`, "Request failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorMessage([]byte(tc.body)); got != tc.want {
				t.Fatalf("errorMessage(%s) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}
