// Package api is the HTTP client for the voicebank collaborator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 4 << 10

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the collaborator REST API. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateUser submits a donor profile.
func (c *Client) CreateUser(ctx context.Context, p Profile) (User, error) {
	var u User
	err := c.doJSON(ctx, http.MethodPost, "/user", p, &u)
	return u, err
}

// Keywords lists the keywords every donor records.
func (c *Client) Keywords(ctx context.Context) (KeywordList, error) {
	var kl KeywordList
	err := c.doJSON(ctx, http.MethodGet, "/keyword", nil, &kl)
	return kl, err
}

// UploadKeyword uploads one keyword repeat.
func (c *Client) UploadKeyword(ctx context.Context, up KeywordUpload) (KeywordUploadResult, error) {
	fields := map[string]string{
		"user_id":      up.UserID,
		"keyword":      up.Keyword,
		"keyword_id":   up.KeywordID,
		"repeat_index": strconv.Itoa(up.RepeatIndex),
	}

	var res KeywordUploadResult
	err := c.doMultipart(ctx, "/keyword/upload", fields, up.Audio, &res)
	return res, err
}

// AssignSentences returns the sentences assigned to a donor.
func (c *Client) AssignSentences(ctx context.Context, userID string) (SentenceAssignment, error) {
	var sa SentenceAssignment
	err := c.doJSON(ctx, http.MethodGet, "/sentence/assign/"+url.PathEscape(userID), nil, &sa)
	return sa, err
}

// UploadSentence uploads one sentence recording with its keyword span.
func (c *Client) UploadSentence(ctx context.Context, up SentenceUpload) (SentenceUploadResult, error) {
	fields := map[string]string{
		"user_id":       up.UserID,
		"sentence_id":   up.SentenceID,
		"keyword_start": strconv.FormatFloat(up.KeywordStart, 'f', 3, 64),
		"keyword_end":   strconv.FormatFloat(up.KeywordEnd, 'f', 3, 64),
		"duration":      strconv.FormatFloat(up.Duration, 'f', 3, 64),
	}

	var res SentenceUploadResult
	err := c.doMultipart(ctx, "/sentence/upload", fields, up.Audio, &res)
	return res, err
}

// StartSession opens the remote session mirror for a donor.
func (c *Client) StartSession(ctx context.Context, userID string) (Session, error) {
	var s Session
	err := c.doJSON(ctx, http.MethodPut, "/user/session/start", SessionStart{UserID: userID}, &s)
	return s, err
}

// UpdateProgress mirrors the wizard's current step and percent.
func (c *Client) UpdateProgress(ctx context.Context, p SessionProgress) error {
	return c.doJSON(ctx, http.MethodPut, "/user/session/progress", p, nil)
}

// CompleteSession marks the session finished.
func (c *Client) CompleteSession(ctx context.Context, ref SessionRef) error {
	return c.doJSON(ctx, http.MethodPut, "/user/session/complete", ref, nil)
}

// CancelSession marks the session abandoned.
func (c *Client) CancelSession(ctx context.Context, ref SessionRef) error {
	return c.doJSON(ctx, http.MethodPut, "/user/session/cancel", ref, nil)
}

// CurrentSession returns the donor's in-progress session.
func (c *Client) CurrentSession(ctx context.Context, userID string) (Session, error) {
	var s Session
	err := c.doJSON(ctx, http.MethodGet, "/user/session/current?user_id="+url.QueryEscape(userID), nil, &s)
	return s, err
}

// CurrentSessionByPhone finds an in-progress session by the donor's phone.
func (c *Client) CurrentSessionByPhone(ctx context.Context, phone string) (Session, error) {
	var s Session
	err := c.doJSON(ctx, http.MethodGet, "/user/session/current-by-phone?phone="+url.QueryEscape(phone), nil, &s)
	return s, err
}

// AssignCrossCheck returns recordings for the donor to review.
func (c *Client) AssignCrossCheck(ctx context.Context, userID string) (CrossCheckAssignment, error) {
	var a CrossCheckAssignment
	err := c.doJSON(ctx, http.MethodGet, "/crosscheck/assign/"+url.PathEscape(userID), nil, &a)
	return a, err
}

// SubmitCrossCheck records one review.
func (c *Client) SubmitCrossCheck(ctx context.Context, r CrossCheckReview) error {
	return c.doJSON(ctx, http.MethodPost, "/crosscheck/submit", r, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, path, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, a Audio, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write multipart field %s: %w", k, err)
		}
	}

	fw, err := mw.CreateFormFile("file", a.Filename)
	if err != nil {
		return fmt.Errorf("failed to create multipart file: %w", err)
	}
	if _, err := fw.Write(a.Data); err != nil {
		return fmt.Errorf("failed to write multipart file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build POST %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", req.Method,
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: req.Method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", req.Method, path, err)
	}

	return nil
}
