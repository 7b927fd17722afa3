// FilePath: internal/repository/files/files.storage.go
package files

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const (
	defaultPermissions = 0755
)

// FileConfig holds configuration for the image storage
type FileConfig struct {
	BasePath      string
	PublicBaseURL string
}

// ImageRepo stores leak photos on the local filesystem. The files are served
// read-only under PublicBaseURL.
type ImageRepo struct {
	config FileConfig
}

var _ repository.ImageStore = (*ImageRepo)(nil)

// NewImageRepository creates a new image storage repository
func NewImageRepository(config FileConfig) (*ImageRepo, error) {
	if err := createDirectoryIfNotExists(config.BasePath); err != nil {
		return nil, err
	}
	config.PublicBaseURL = strings.TrimRight(config.PublicBaseURL, "/")
	return &ImageRepo{config: config}, nil
}

func (r *ImageRepo) BasePath() string {
	return r.config.BasePath
}

// Upload writes content to <BasePath>/<name> and returns its public URL.
// Existing objects are never overwritten.
func (r *ImageRepo) Upload(ctx context.Context, name, contentType string, content io.Reader) (string, error) {
	rel, err := cleanObjectName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", errors.NewUploadError("upload cancelled", err)
	}

	fullPath := filepath.Join(r.config.BasePath, filepath.FromSlash(rel))
	if err := createDirectoryIfNotExists(filepath.Dir(fullPath)); err != nil {
		return "", errors.NewUploadError("failed to prepare image directory", err)
	}

	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", errors.NewDuplicateError("image already exists", err)
		}
		return "", errors.NewUploadError("failed to create image file", err)
	}

	if _, err = io.Copy(dst, content); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return "", errors.NewUploadError("failed to write image", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(fullPath)
		return "", errors.NewUploadError("failed to write image", err)
	}

	nuts.L.Infof("[ImageRepo] Stored image: %s (%s)", rel, contentType)
	return r.config.PublicBaseURL + "/" + rel, nil
}

// cleanObjectName rejects names that would escape the base path
func cleanObjectName(name string) (string, error) {
	rel := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." || strings.Contains(name, "..") {
		return "", errors.NewValidationError("invalid object name", nil)
	}
	return rel, nil
}

func createDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err := os.MkdirAll(path, defaultPermissions)
		if err != nil {
			return errors.NewInternalError("failed to create directory", err)
		}
	}
	return nil
}
