// Package mattermost is a minimal client for the Mattermost REST API:
// send a message, upload a file, send a message with files attached.
// Retries, backoff, and rate limiting are the caller's concern.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
)

// Config configures the Mattermost client. URL, Token, and ChannelID
// are not validated here; malformed values surface as request errors.
type Config struct {
	URL        string       // base server URL, e.g. https://mm.example.com
	Token      string       // bot bearer token
	ChannelID  string       // default channel for sends and uploads
	HTTPClient *http.Client // optional; SharedHTTPClient is used when nil
	Logger     *slog.Logger // optional; discards when nil
}

// Client talks to a single Mattermost server with a fixed token and
// default channel. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	url       string
	token     string
	channelID string
	client    *http.Client
	logger    *slog.Logger
}

// File is a filename/content pair for upload. The name is used for
// MIME detection and display on the server side only.
type File struct {
	Name    string
	Content []byte
}

// User identifies the account a token belongs to.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type postRequest struct {
	ChannelID string   `json:"channel_id"`
	Message   string   `json:"message"`
	FileIDs   []string `json:"file_ids,omitempty"`
}

type postResponse struct {
	ID string `json:"id"`
}

type fileInfo struct {
	ID string `json:"id"`
}

type uploadResponse struct {
	FileInfos []fileInfo `json:"file_infos"`
}

// NewClient creates a client for the given server, token, and default
// channel.
func NewClient(cfg Config) *Client {
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = SharedHTTPClient(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		url:       strings.TrimRight(cfg.URL, "/"),
		token:     cfg.Token,
		channelID: cfg.ChannelID,
		client:    httpc,
		logger:    logger,
	}
}

// SendMessage posts text to a channel and returns the server-assigned
// post ID. An empty channelID falls back to the configured default.
// fileIDs reference previously uploaded files and are attached in the
// order given; pass nil for a plain message. Empty text is forwarded
// verbatim.
func (c *Client) SendMessage(ctx context.Context, text, channelID string, fileIDs []string) (string, error) {
	if channelID == "" {
		channelID = c.channelID
	}

	data, err := json.Marshal(postRequest{
		ChannelID: channelID,
		Message:   text,
		FileIDs:   fileIDs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v4/posts", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp postResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &MalformedResponseError{Field: "id"}
	}

	c.logger.Info("message sent", "channel_id", channelID, "post_id", resp.ID, "files", len(fileIDs))
	return resp.ID, nil
}

// UploadFile uploads content to the default channel and returns the
// server-assigned file ID for use in a later SendMessage. No size
// limit is enforced locally; oversized payloads fail at the server.
func (c *Client) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("channel_id", c.channelID); err != nil {
		return "", fmt.Errorf("multipart channel_id: %w", err)
	}
	part, err := w.CreateFormFile("files", filename)
	if err != nil {
		return "", fmt.Errorf("multipart file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("multipart write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v4/files", &buf)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if len(resp.FileInfos) == 0 {
		return "", &MalformedResponseError{Field: "file_infos"}
	}

	c.logger.Info("file uploaded", "filename", filename, "size", len(content), "file_id", resp.FileInfos[0].ID)
	return resp.FileInfos[0].ID, nil
}

// SendMessageWithFiles uploads every file in order, one at a time,
// then sends a single message with all resulting IDs attached. The
// first upload failure aborts the whole call and its error is returned
// unchanged; files uploaded before the failure stay on the server.
func (c *Client) SendMessageWithFiles(ctx context.Context, text string, files []File, channelID string) (string, error) {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		id, err := c.UploadFile(ctx, f.Name, f.Content)
		if err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	return c.SendMessage(ctx, text, channelID, ids)
}

// Me fetches the account the configured token belongs to. Useful as a
// connectivity and credential check.
func (c *Client) Me(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/v4/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	var user User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, &MalformedResponseError{Field: "id"}
	}
	return &user, nil
}

// do attaches the bearer token, executes the request, and classifies
// the outcome: 200/201 decode into out, 404 becomes NotFoundError,
// anything else becomes RequestError with the response body.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	c.logger.Info("mattermost request", "method", req.Method, "path", req.URL.Path)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return &NotFoundError{Path: req.URL.Path}
	default:
		return &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
