package handler

import (
	"context"
	"log/slog"
	"mime/multipart"

	"smartcity/internal/media"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

// uploader relays multipart files to the media host. Files that fail to
// upload are logged and skipped.
type uploader struct {
	media  media.Uploader
	logger *slog.Logger
}

// files uploads at most limit files of field and returns their URLs.
func (u uploader) files(c *gin.Context, field, folder string, limit int) []string {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return []string{}
	}

	headers := form.File[field]
	if limit > 0 && len(headers) > limit {
		u.logger.Warn("too many files, extra ignored", "field", field, "received", len(headers), "max", limit)
		headers = headers[:limit]
	}

	urls := make([]string, 0, len(headers))
	for _, fh := range headers {
		url, err := u.upload(c, fh, folder)
		if err != nil {
			u.logger.Warn("file upload failed", "field", field, "filename", fh.Filename, "error", err)
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// deferred returns the upload of field's files for the service to run once
// the request is valid.
func (u uploader) deferred(c *gin.Context, field, folder string, limit int) service.Upload {
	return func(context.Context) []string {
		return u.files(c, field, folder, limit)
	}
}

func (u uploader) upload(c *gin.Context, fh *multipart.FileHeader, folder string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return u.media.Upload(c.Request.Context(), f, fh.Filename, folder)
}
