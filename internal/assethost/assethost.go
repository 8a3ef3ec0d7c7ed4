// Package assethost abstracts the remote image host that serves item photos.
package assethost

import "context"

// Uploader sends an encoded image to the remote host and returns the stable
// URL it will be served from. Failures surface as *domain.UploadError; a
// failed upload is terminal for the user action that triggered it.
type Uploader interface {
	Upload(ctx context.Context, encoded []byte, mimeType string) (string, error)
}
