// Package collector uploads release sourcemaps to the Hawk collector.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"
)

// ErrInvalidResponse is returned when the collector answers with a body that
// is not a JSON object.
var ErrInvalidResponse = errors.New("collector returned a non-JSON response")

// RejectedError is returned when the collector response carries an error field.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Client posts sourcemaps to a single collector endpoint.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
}

// New creates a Client. A zero timeout leaves requests unbounded.
func New(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		token:    token,
	}
}

// Upload sends one sourcemap tagged with release.
func (c *Client) Upload(ctx context.Context, release, fileName string, content []byte) error {
	body, contentType, err := multipartBody(release, path.Base(fileName), content)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach collector: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return checkResponse(data)
}

func multipartBody(release, fileName string, content []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := w.WriteField("release", release); err != nil {
		return nil, "", fmt.Errorf("failed to write release field: %w", err)
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return buf, w.FormDataContentType(), nil
}

// checkResponse treats a truthy "error" field as a rejection. The status
// code is not consulted.
func checkResponse(data []byte) error {
	var resp map[string]any
	if err := json.Unmarshal(data, &resp); err != nil || resp == nil {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, snippet(data))
	}

	if !truthy(resp["error"]) {
		return nil
	}

	if msg, ok := resp["message"].(string); ok && msg != "" {
		return &RejectedError{Message: msg}
	}
	if msg, ok := resp["error"].(string); ok {
		return &RejectedError{Message: msg}
	}
	return &RejectedError{Message: "unknown error"}
}

// truthy follows JavaScript truthiness for decoded JSON values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func snippet(data []byte) string {
	const maxLen = 120
	s := string(bytes.TrimSpace(data))
	if s == "" {
		return "empty body"
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
