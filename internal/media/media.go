// Package media relays uploaded files to the external media host. Only the
// resulting URL is persisted by the API.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

const (
	FolderAvatars = "user_avatars"
	FolderIssues  = "issue_images"
	FolderPolls   = "poll_images"
	FolderReports = "reports"
)

var ErrNotConfigured = errors.New("media host not configured")

type Uploader interface {
	Upload(ctx context.Context, r io.Reader, filename, folder string) (string, error)
}

type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

// Upload stores r under folder and returns its HTTPS URL.
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	resp, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:   folder,
		PublicID: publicID(filename),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", filename, resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// publicID derives a host-side name from the client filename. Empty lets the
// host pick one.
func publicID(filename string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if base == "." || base == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + "_" + uuid.NewString()[:8]
}

// Disabled rejects every upload. It is used when no media host is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, io.Reader, string, string) (string, error) {
	return "", ErrNotConfigured
}
