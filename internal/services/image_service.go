package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jlrp/internal/models"
	"jlrp/internal/repositories"
	"jlrp/internal/storage"
	"jlrp/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	defaultImagePageSize = 50
	maxImagePageSize     = 200
)

var allowedImageExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ImageUpload is one file received from an admin.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	Title       string
	Description string
	UploadedBy  string
}

// ImagePage is a page of image metadata.
type ImagePage struct {
	Items []models.Image `json:"items"`
	Count int            `json:"count"`
	Total int64          `json:"total"`
	Limit int            `json:"limit"`
	Skip  int            `json:"skip"`
}

// ImageService validates uploads, stores them and keeps their metadata.
type ImageService struct {
	repo    repositories.ImageRepository
	store   storage.ObjectStore
	maxSize int64
	log     logger.Logger
}

func NewImageService(repo repositories.ImageRepository, store storage.ObjectStore, maxSize int64, log logger.Logger) *ImageService {
	return &ImageService{repo: repo, store: store, maxSize: maxSize, log: log}
}

// Validate checks the declared type, extension, size and sniffed content of an upload.
func (s *ImageService) Validate(in ImageUpload) error {
	if !strings.HasPrefix(strings.ToLower(in.ContentType), "image/") {
		return newError(ErrValidation, "only image files are allowed")
	}
	if !allowedImageExtensions[strings.ToLower(filepath.Ext(in.Filename))] {
		return newError(ErrValidation, "unsupported file extension")
	}
	if len(in.Data) == 0 {
		return newError(ErrValidation, "uploaded file is empty")
	}
	if s.maxSize > 0 && int64(len(in.Data)) > s.maxSize {
		return newError(ErrValidation, "file too large, max allowed: %d bytes", s.maxSize)
	}
	if detected := mimetype.Detect(in.Data); !strings.HasPrefix(detected.String(), "image/") {
		return newError(ErrValidation, "uploaded file is not a valid image")
	}
	return nil
}

// Upload validates and stores an image, then records its metadata.
func (s *ImageService) Upload(ctx context.Context, in ImageUpload) (*models.Image, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	obj, err := s.store.Put(ctx, in.Filename, in.ContentType, in.Data)
	if err != nil {
		return nil, wrapError(ErrUpstream, err, "failed to store image")
	}

	img := &models.Image{
		ID:               uuid.New().String(),
		Filename:         obj.Filename,
		OriginalFilename: in.Filename,
		PublicID:         obj.PublicID,
		URL:              obj.URL,
		ContentType:      in.ContentType,
		Size:             int64(len(in.Data)),
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		UploadedBy:       in.UploadedBy,
		UploadedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, img); err != nil {
		if delErr := s.store.Delete(ctx, obj); delErr != nil {
			s.log.Warn().Err(delErr).Str("url", obj.URL).Msg("failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to save image metadata: %w", err)
	}
	s.log.Info().Str("image_id", img.ID).Str("store", s.store.Name()).Int64("size", img.Size).Msg("image uploaded")
	return img, nil
}

// List pages through image metadata, newest first. q matches titles.
func (s *ImageService) List(ctx context.Context, q string, skip, limit int) (*ImagePage, error) {
	if skip < 0 {
		return nil, newError(ErrValidation, "skip must be >= 0")
	}
	if limit == 0 {
		limit = defaultImagePageSize
	}
	if limit < 1 || limit > maxImagePageSize {
		return nil, newError(ErrValidation, "limit must be between 1 and %d", maxImagePageSize)
	}
	items, total, err := s.repo.List(ctx, strings.TrimSpace(q), skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	if items == nil {
		items = []models.Image{}
	}
	return &ImagePage{Items: items, Count: len(items), Total: total, Limit: limit, Skip: skip}, nil
}

// Delete removes an image's stored object and its metadata. A failure to
// remove the object is logged and does not keep the metadata around.
func (s *ImageService) Delete(ctx context.Context, id string) error {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newError(ErrNotFound, "image not found")
		}
		return fmt.Errorf("failed to load image: %w", err)
	}
	obj := storage.Object{Filename: img.Filename, URL: img.URL, PublicID: img.PublicID}
	if err := s.store.Delete(ctx, obj); err != nil {
		s.log.Warn().Err(err).Str("image_id", id).Msg("failed to remove stored image")
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// DeleteByURL removes the object behind url and any metadata pointing at it.
// Errors are logged only.
func (s *ImageService) DeleteByURL(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.store.DeleteByURL(ctx, url); err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("failed to remove product image")
	}
	if err := s.repo.DeleteByURL(ctx, url); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.log.Warn().Err(err).Str("url", url).Msg("failed to remove product image metadata")
	}
}
