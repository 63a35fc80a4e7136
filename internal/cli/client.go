package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// apiError is a decoded error envelope from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// client is a thin wrapper over the HTTP API. It speaks the data/error
// envelope and carries the API key; it knows nothing about server internals.
type client struct {
	base string
	key  string
	http *http.Client
}

func newClient(base, key string) *client {
	return &client{
		base: base,
		key:  key,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type keyData struct {
	APIKey string `json:"api_key"`
	UID    string `json:"uid"`
}

type uploadTicket struct {
	IID          string `json:"iid"`
	Key          string `json:"key"`
	Filename     string `json:"filename"`
	PresignedURL string `json:"presigned_url"`
}

type confirmPayload struct {
	IID      string `json:"iid"`
	Key      string `json:"key"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Private  bool   `json:"private"`
}

type confirmResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type galleryItem struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Mime      string `json:"mime"`
	Private   bool   `json:"private"`
	CreatedAt int64  `json:"created_at"`
	Views     int64  `json:"views"`
	URL       string `json:"url"`
}

func (c *client) register(ctx context.Context, username, password string) (*keyData, error) {
	var out keyData
	err := c.do(ctx, http.MethodPost, "/api/v1/register",
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) login(ctx context.Context, username, password string) (*keyData, error) {
	var out keyData
	err := c.do(ctx, http.MethodPost, "/api/v1/login",
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) requestUpload(ctx context.Context, filename, mimeType string) (*uploadTicket, error) {
	var out uploadTicket
	err := c.do(ctx, http.MethodPost, "/api/v1/upload/request",
		map[string]string{"filename": filename, "mime_type": mimeType}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) confirmUpload(ctx context.Context, p confirmPayload) (*confirmResult, error) {
	var out confirmResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/upload/complete", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) gallery(ctx context.Context) ([]galleryItem, error) {
	var out struct {
		Items []galleryItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/me/images", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *client) deleteImage(ctx context.Context, iid string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/image/"+iid, nil, nil)
}

// putObject streams the file to the presigned URL. The Content-Type must
// match the one declared at upload request time or the store rejects the PUT.
func (c *client) putObject(ctx context.Context, presignedURL, path, mimeType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload to object storage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("object storage rejected upload: HTTP %d", resp.StatusCode)
	}
	return nil
}

// do sends a JSON request and decodes the {"data": ...} envelope into out.
// Error envelopes come back as *apiError.
func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var env struct {
			Error apiError `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil && env.Error.Code != "" {
			env.Error.Status = resp.StatusCode
			return &env.Error
		}
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, path)
	}

	if out == nil {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}
