package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryRawResource = "raw"

// CloudinaryBlobStore keeps blobs as raw Cloudinary assets named Folder/<path>.
type CloudinaryBlobStore struct {
	cld    *cloudinary.Cloudinary
	folder string
	client *http.Client
}

func NewCloudinaryBlobStore(cloudinaryURL, folder string) (*CloudinaryBlobStore, error) {
	if strings.TrimSpace(cloudinaryURL) == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL is required for the cloudinary blob backend")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryBlobStore{
		cld:    cld,
		folder: strings.Trim(folder, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *CloudinaryBlobStore) publicID(p string) (string, error) {
	rel, err := cleanBlobPath(p)
	if err != nil {
		return "", err
	}
	if s.folder == "" {
		return rel, nil
	}
	return path.Join(s.folder, rel), nil
}

func (s *CloudinaryBlobStore) Write(ctx context.Context, p string, data []byte) error {
	publicID, err := s.publicID(p)
	if err != nil {
		return err
	}
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: cloudinaryRawResource,
	})
	if err != nil {
		return fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return nil
}

func (s *CloudinaryBlobStore) Read(ctx context.Context, p string) ([]byte, error) {
	publicID, err := s.publicID(p)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("https://res.cloudinary.com/%s/%s/upload/%s",
		s.cld.Config.Cloud.CloudName, cloudinaryRawResource, publicID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBlobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloudinary fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *CloudinaryBlobStore) Delete(ctx context.Context, p string) error {
	publicID, err := s.publicID(p)
	if err != nil {
		return err
	}
	if _, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: cloudinaryRawResource,
	}); err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	return nil
}
