package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

var cloudinaryVersion = regexp.MustCompile(`^v\d+$`)

// CloudinaryStore keeps uploads in a Cloudinary folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Name() string { return "cloudinary" }

func (s *CloudinaryStore) Put(ctx context.Context, originalName, _ string, data []byte) (Object, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     strings.ReplaceAll(uuid.New().String(), "-", ""),
		ResourceType: "image",
	})
	if err != nil {
		return Object{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return Object{}, fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	return Object{
		Filename: originalName,
		URL:      resp.SecureURL,
		PublicID: resp.PublicID,
	}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, obj Object) error {
	if obj.PublicID == "" {
		return s.DeleteByURL(ctx, obj.URL)
	}
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: obj.PublicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", obj.PublicID, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", obj.PublicID, resp.Error.Message)
	}
	return nil
}

func (s *CloudinaryStore) DeleteByURL(ctx context.Context, rawURL string) error {
	id := PublicIDFromURL(rawURL)
	if id == "" {
		return nil
	}
	return s.Delete(ctx, Object{PublicID: id})
}

// PublicIDFromURL extracts the public id from a Cloudinary delivery URL such
// as https://res.cloudinary.com/<cloud>/image/upload/v123/folder/name.jpg.
func PublicIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p != "upload" {
			continue
		}
		rest := parts[i+1:]
		if len(rest) > 0 && cloudinaryVersion.MatchString(rest[0]) {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return ""
		}
		id := strings.Join(rest, "/")
		return strings.TrimSuffix(id, path.Ext(id))
	}
	return ""
}
