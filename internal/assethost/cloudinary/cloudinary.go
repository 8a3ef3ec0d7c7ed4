// Package cloudinary uploads images to a Cloudinary-style unsigned upload
// endpoint: one multipart POST carrying the image as a base64 data URL plus
// a fixed upload preset, answered with JSON containing the hosted URL.
package cloudinary

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/xuanvinh/partsbin/internal/domain"
)

// maxErrBody caps how much of an error response body is kept for the message.
const maxErrBody = 4096

type Client struct {
	endpoint string
	preset   string
	client   *http.Client
}

func New(endpoint, preset string) *Client {
	return &Client{
		endpoint: endpoint,
		preset:   preset,
		client:   &http.Client{},
	}
}

// Upload sends one image and returns its hosted URL. No retries: the source
// behavior treats a failed upload as terminal for that user action.
func (c *Client) Upload(ctx context.Context, encoded []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(encoded))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("file", dataURL); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := mw.WriteField("upload_preset", c.preset); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.UploadError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close upload response body", "error", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return "", &domain.UploadError{StatusCode: resp.StatusCode, Message: string(errBody)}
	}

	var respBody struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", &domain.UploadError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if respBody.SecureURL == "" {
		return "", &domain.UploadError{Err: fmt.Errorf("response missing secure_url")}
	}

	return respBody.SecureURL, nil
}
