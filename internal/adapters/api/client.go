// Package api talks to the external interview service: session metadata,
// recording upload, transcript and analysis status, notifications.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/rs/zerolog/log"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
}

// errorBody is the error shape the service answers with.
type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Other statuses return
// the service's detail message as an error.
func (c *Client) do(req *http.Request, out any) (int, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		return resp.StatusCode, eb.Detail, nil
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}
	return resp.StatusCode, "", nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	status, detail, err := c.do(req, out)
	if err != nil {
		return err
	}
	if status >= 300 {
		return statusError(status, detail)
	}
	return nil
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("status %d", e.Status)
}

func statusError(status int, detail string) error {
	return &StatusError{Status: status, Detail: detail}
}

func (c *Client) GetInterview(ctx context.Context, session domain.SessionID) (*domain.Interview, error) {
	var iv domain.Interview
	if err := c.getJSON(ctx, "/interviews/"+string(session), &iv); err != nil {
		return nil, fmt.Errorf("get interview %s: %w", session, err)
	}
	return &iv, nil
}

func (c *Client) TranscriptStatus(ctx context.Context, session domain.SessionID) (*domain.TranscriptStatus, error) {
	var st domain.TranscriptStatus
	if err := c.getJSON(ctx, "/interviews/"+string(session)+"/transcript", &st); err != nil {
		return nil, fmt.Errorf("transcript status %s: %w", session, err)
	}
	return &st, nil
}

// StartAnalysis asks the service to analyze the transcript; the result shows
// up later as ai_summary on the interview.
func (c *Client) StartAnalysis(ctx context.Context, session domain.SessionID) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/interviews/"+string(session)+"/analyze", nil)
	if err != nil {
		return err
	}
	status, detail, err := c.do(req, nil)
	if err != nil {
		return fmt.Errorf("start analysis %s: %w", session, err)
	}
	if status >= 300 {
		return fmt.Errorf("start analysis %s: %w", session, statusError(status, detail))
	}
	return nil
}

// UploadRecording posts the artifact as multipart field "file". A non-2xx
// answer becomes *domain.UploadError carrying the service detail.
func (c *Client) UploadRecording(ctx context.Context, session domain.SessionID, a *domain.Artifact) (*domain.ServerRecord, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, a.FileName(session)))
	ct := a.ContainerType
	if ct == "" {
		ct = domain.DefaultContainer
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(a.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/interviews/"+string(session)+"/upload-recording", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var rec domain.ServerRecord
	status, detail, err := c.do(req, &rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpload, err)
	}
	if status >= 300 {
		return nil, &domain.UploadError{Status: status, Detail: detail}
	}
	log.Info().Str("module", "api").Str("session", string(session)).Int("bytes", a.Size()).Str("filename", rec.Filename).Msg("recording uploaded")
	return &rec, nil
}

// Notify posts one notification per recipient and does not wait for or
// report the outcome; failures are only logged.
func (c *Client) Notify(ctx context.Context, notes ...domain.Notification) {
	for _, n := range notes {
		go func(n domain.Notification) {
			if err := c.notify(context.WithoutCancel(ctx), n); err != nil {
				log.Warn().Err(err).Str("module", "api").Str("to", n.To).Msg("notification failed")
			}
		}(n)
	}
}

func (c *Client) notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/notifications", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	status, detail, err := c.do(req, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return statusError(status, detail)
	}
	return nil
}

// IsNotFound reports whether err came from a 404 answer.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}
