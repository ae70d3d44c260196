// Package rest implements app.Backend against a remote scoring authority.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// Client talks to the authority REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *validator.Validate
	logger   *slog.Logger
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		validate: validator.New(),
		logger:   logger.With("component", "backend_client"),
	}
}

func (c *Client) Overview(ctx context.Context, quizID string) (domain.Overview, error) {
	var ov domain.Overview
	if err := c.do(ctx, http.MethodGet, "/api/quizzes/"+url.PathEscape(quizID)+"/overview", nil, &ov); err != nil {
		return domain.Overview{}, err
	}
	if err := c.validate.Struct(ov); err != nil {
		return domain.Overview{}, fmt.Errorf("invalid overview: %w", err)
	}
	return ov, nil
}

func (c *Client) CreateAttempt(ctx context.Context, quizID string) (domain.AttemptTicket, error) {
	var ticket domain.AttemptTicket
	if err := c.do(ctx, http.MethodPost, "/api/quizzes/"+url.PathEscape(quizID)+"/attempts", nil, &ticket); err != nil {
		return domain.AttemptTicket{}, err
	}
	if err := c.validate.Struct(ticket); err != nil {
		return domain.AttemptTicket{}, fmt.Errorf("invalid attempt ticket: %w", err)
	}
	return ticket, nil
}

func (c *Client) SubmitAttempt(ctx context.Context, req codec.SubmitRequest) (codec.VerdictPayload, error) {
	var verdict codec.VerdictPayload
	path := "/api/attempts/" + url.PathEscape(req.AttemptID) + "/submit"
	if err := c.do(ctx, http.MethodPost, path, req, &verdict); err != nil {
		return codec.VerdictPayload{}, err
	}
	return verdict, nil
}

func (c *Client) ReplayAttempt(ctx context.Context, attemptID string) (codec.ReplayPayload, error) {
	var replay codec.ReplayPayload
	if err := c.do(ctx, http.MethodGet, "/api/attempts/"+url.PathEscape(attemptID)+"/replay", nil, &replay); err != nil {
		return codec.ReplayPayload{}, err
	}
	return replay, nil
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
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("backend call", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start).String())

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if sentinel := domain.ErrorFromCode(body.Code); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, body.Message)
	}
	return fmt.Errorf("backend returned %d: %s", resp.StatusCode, body.Message)
}
