// Package imagehost stores uploaded images on Cloudinary.
package imagehost

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

type cloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger core.Logger
}

var _ core.ImageUploader = (*cloudinaryUploader)(nil)

func NewCloudinaryUploader(logger core.Logger, conf *core.Config) (core.ImageUploader, error) {
	cld, err := cloudinary.NewFromParams(conf.Cloudinary.CloudName, conf.Cloudinary.APIKey, conf.Cloudinary.APISecret)
	if err != nil {
		return nil, errors.Wrap(err, "configuring cloudinary")
	}
	cld.Config.URL.Secure = true
	return &cloudinaryUploader{cld: cld, folder: conf.Cloudinary.Folder, logger: logger}, nil
}

func (u *cloudinaryUploader) Upload(ctx context.Context, file io.Reader, filename string) (core.Image, error) {
	res, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         u.folder,
		PublicID:       publicID(filename),
		ResourceType:   "image",
		UniqueFilename: boolPtr(true),
	})
	if err != nil {
		return core.Image{}, errors.Wrap(err, "uploading image")
	}
	if res.Error.Message != "" {
		return core.Image{}, errors.Errorf("uploading image: %s", res.Error.Message)
	}
	return core.Image{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (u *cloudinaryUploader) Destroy(ctx context.Context, publicID string) error {
	res, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: "image"})
	if err != nil {
		return errors.Wrap(err, "destroying image")
	}
	if res.Error.Message != "" {
		return errors.Errorf("destroying image: %s", res.Error.Message)
	}
	if res.Result != "ok" {
		u.logger.Warn(fmt.Sprintf("imagehost: destroying %s: %s", publicID, res.Result))
	}
	return nil
}

func publicID(filename string) string {
	return strings.TrimSuffix(path.Base(filename), path.Ext(filename))
}

func boolPtr(b bool) *bool { return &b }

// UploaderMock keeps the uploaded images in memory.
type UploaderMock struct {
	mu        sync.Mutex
	count     int
	Uploaded  map[string]string // public id: filename
	Destroyed []string
	Err       error
}

var _ core.ImageUploader = (*UploaderMock)(nil)

func NewUploaderMock() *UploaderMock {
	return &UploaderMock{Uploaded: make(map[string]string)}
}

func (u *UploaderMock) Upload(ctx context.Context, file io.Reader, filename string) (core.Image, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.Err != nil {
		return core.Image{}, u.Err
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		return core.Image{}, err
	}
	u.count++
	id := fmt.Sprintf("test/%s_%d", publicID(filename), u.count)
	u.Uploaded[id] = filename
	return core.Image{URL: "https://images.test/" + id + path.Ext(filename), PublicID: id}, nil
}

func (u *UploaderMock) Destroy(ctx context.Context, publicID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.Err != nil {
		return u.Err
	}
	delete(u.Uploaded, publicID)
	u.Destroyed = append(u.Destroyed, publicID)
	return nil
}
