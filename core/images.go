package core

import (
	"context"
	"io"
)

type (
	Image struct {
		URL      string `json:"url"`
		PublicID string `json:"public_id"`
	}

	// ImageFile is an image received from a client, not yet uploaded.
	ImageFile struct {
		File     io.Reader
		Filename string
	}

	// ImageUploader is any service hosting uploaded images.
	ImageUploader interface {
		Upload(ctx context.Context, file io.Reader, filename string) (Image, error)
		Destroy(ctx context.Context, publicID string) error
	}
)
