package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"quiz-player/internal/domain"
)

const (
	csrfCookie    = "csrftoken"
	sessionCookie = "sessionid"
	csrfHeader    = "X-CSRFToken"
)

// APIError is a non-2xx backend response reduced to one readable message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Client talks to the lobby REST API with cookie credentials and CSRF headers.
type Client struct {
	base   *url.URL
	http   *http.Client
	jar    http.CookieJar
	logger *zap.Logger
}

// NewClient builds a client for baseURL (e.g. http://localhost:8080/api).
// session is the sessionid cookie value identifying the user; empty keeps whatever the jar holds.
func NewClient(baseURL, session string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if session != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: sessionCookie, Value: session, Path: "/"}})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   base,
		http:   &http.Client{Jar: jar, Timeout: timeout},
		jar:    jar,
		logger: logger,
	}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Cookies returns the cookies the jar would send to the API root.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.base)
}

// EnsureCSRF fetches the csrftoken cookie when the jar does not hold one yet.
func (c *Client) EnsureCSRF(ctx context.Context) error {
	if c.cookie(csrfCookie) != "" {
		return nil
	}
	return c.do(ctx, http.MethodGet, "/auth/csrf/", nil, nil)
}

// JoinLobby starts a solo session for quizID.
func (c *Client) JoinLobby(ctx context.Context, quizID int64) (domain.JoinResult, error) {
	var out domain.JoinResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/game/lobby/join/%d/", quizID), struct{}{}, &out)
	return out, err
}

// GetLobbyState fetches the current session snapshot.
func (c *Client) GetLobbyState(ctx context.Context, lobbyID string) (domain.SessionState, error) {
	var out domain.SessionState
	err := c.do(ctx, http.MethodGet, "/game/lobby/"+url.PathEscape(lobbyID)+"/state/", nil, &out)
	return out, err
}

// SubmitAnswer posts the choice index; nil submits a timeout.
func (c *Client) SubmitAnswer(ctx context.Context, lobbyID string, index *int) (domain.SubmissionResult, error) {
	var out domain.SubmissionResult
	err := c.do(ctx, http.MethodPost, "/game/lobby/"+url.PathEscape(lobbyID)+"/submit/", domain.AnswerPayload{Index: index}, &out)
	return out, err
}

// PublishedQuizzes lists the quizzes that can be joined.
func (c *Client) PublishedQuizzes(ctx context.Context) ([]domain.PublishedQuiz, error) {
	var out []domain.PublishedQuiz
	err := c.do(ctx, http.MethodGet, "/game/quizzes/", nil, &out)
	return out, err
}

// MyParticipations lists the caller's completed runs.
func (c *Client) MyParticipations(ctx context.Context) ([]domain.Participation, error) {
	var out []domain.Participation
	err := c.do(ctx, http.MethodGet, "/game/participations/mine/", nil, &out)
	return out, err
}

// Participation loads one completed run for the results view.
func (c *Client) Participation(ctx context.Context, id int64) (domain.Participation, error) {
	var out domain.Participation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/game/participations/%d/", id), nil, &out)
	return out, err
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if unsafeMethod(method) {
		req.Header.Set(csrfHeader, c.cookie(csrfCookie))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func unsafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// errorMessage picks the most descriptive message out of an error body.
func errorMessage(raw []byte) string {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || len(data) == 0 {
		return "Request failed"
	}
	if detail, ok := data["detail"].(string); ok && detail != "" {
		return detail
	}
	switch e := data["error"].(type) {
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if e != "" {
			return e
		}
	}
	if list, ok := data["non_field_errors"].([]any); ok && len(list) > 0 {
		if msg, ok := list[0].(string); ok {
			return msg
		}
	}

	// JSON objects are unordered; sort keys so the pick is stable.
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if list, ok := data[k].([]any); ok && len(list) > 0 {
			return fmt.Sprintf("%s: %v", k, list[0])
		}
	}
	return "Request failed"
}
