package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge          = errors.New("file size exceeds the maximum allowed size")
	ErrContentTypeNotAllowed = errors.New("content type is not allowed")
)

// AllowedImageTypes lists the content types accepted for catalog images.
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
}

// UploadedFile describes a stored object and its public URL.
type UploadedFile struct {
	FileURL string `json:"file_url"`
	Key     string `json:"key"`
}

// Storage stores uploaded files and serves them back by URL.
type Storage interface {
	Save(ctx context.Context, key, contentType string, body io.Reader) (*UploadedFile, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds a collision-free object key preserving the file extension.
func ObjectKey(folder, filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s/%s%s", folder, uuid.New().String(), ext)
}

// AllowedImageType reports whether the content type is an accepted image type.
func AllowedImageType(contentType string) bool {
	for _, allowed := range AllowedImageTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// ValidateImageUpload checks the size and content type of an incoming image.
func ValidateImageUpload(size, maxSize int64, contentType string) error {
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, size, maxSize)
	}
	if !AllowedImageType(contentType) {
		return fmt.Errorf("%w: %s", ErrContentTypeNotAllowed, contentType)
	}
	return nil
}
