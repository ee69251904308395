package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"jlrp/internal/models"
	"jlrp/internal/repositories"
	"jlrp/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultProductPageSize = 25
	maxProductPageSize     = 100
)

var productSortFields = map[string]bool{"created_at": true, "price": true, "title": true}

// ProductInput holds the fields of a new product.
type ProductInput struct {
	Title       string   `json:"title" form:"title" validate:"required"`
	Gender      string   `json:"gender" form:"gender" validate:"required"`
	Category    string   `json:"category" form:"category" validate:"required"`
	Subcategory string   `json:"subcategory" form:"subcategory" validate:"required"`
	Price       float64  `json:"price" form:"price" validate:"gte=0"`
	Description string   `json:"description" form:"description"`
	Images      []string `json:"images"`
	Available   *bool    `json:"available"`
}

// ProductPatch holds the fields to change on an existing product. Nil
// fields are left untouched.
type ProductPatch struct {
	Title       *string   `json:"title"`
	Gender      *string   `json:"gender"`
	Category    *string   `json:"category"`
	Subcategory *string   `json:"subcategory"`
	Price       *float64  `json:"price"`
	Description *string   `json:"description"`
	Images      *[]string `json:"images"`
	Available   *bool     `json:"available"`
}

func (p ProductPatch) empty() bool {
	return p.Title == nil && p.Gender == nil && p.Category == nil && p.Subcategory == nil &&
		p.Price == nil && p.Description == nil && p.Images == nil && p.Available == nil
}

// ProductQuery is a catalog listing request. Zero Limit and SortDir pick the defaults.
type ProductQuery struct {
	Gender      string
	Subcategory string
	MinPrice    *float64
	MaxPrice    *float64
	Skip        int
	Limit       int
	SortBy      string
	SortDir     int
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	images *ImageService
	log    logger.Logger
}

// NewProductService creates a new ProductService. images may be nil, in
// which case image cleanup and multipart creation are unavailable.
func NewProductService(repo repositories.ProductRepository, images *ImageService, log logger.Logger) *ProductService {
	return &ProductService{repo: repo, images: images, log: log}
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return newError(ErrValidation, "price must be a number >= 0")
	}
	return nil
}

func (s *ProductService) filter(q ProductQuery) (models.ProductFilter, error) {
	f := models.ProductFilter{
		Subcategory: normalizeTerm(q.Subcategory),
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		Skip:        q.Skip,
		Limit:       q.Limit,
		SortBy:      strings.TrimSpace(q.SortBy),
		SortDir:     q.SortDir,
	}
	if strings.TrimSpace(q.Gender) != "" {
		g, err := ValidateGender(q.Gender)
		if err != nil {
			return f, err
		}
		f.Gender = g
	}
	if f.Skip < 0 {
		return f, newError(ErrValidation, "skip must be >= 0")
	}
	if f.Limit == 0 {
		f.Limit = defaultProductPageSize
	}
	if f.Limit < 1 || f.Limit > maxProductPageSize {
		return f, newError(ErrValidation, "limit must be between 1 and %d", maxProductPageSize)
	}
	if f.SortBy == "" {
		f.SortBy = "created_at"
	}
	if !productSortFields[f.SortBy] {
		return f, newError(ErrValidation, "sort_by must be one of: created_at, price, title")
	}
	if f.SortDir == 0 {
		f.SortDir = -1
	}
	if f.SortDir != 1 && f.SortDir != -1 {
		return f, newError(ErrValidation, "sort_dir must be 1 or -1")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return f, newError(ErrValidation, "min_price must not exceed max_price")
	}
	return f, nil
}

// List returns products matching q.
func (s *ProductService) List(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// Get retrieves a single product by its ID.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "product not found")
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return p, nil
}

func (s *ProductService) build(in ProductInput) (*models.Product, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, newError(ErrValidation, "title is required")
	}
	gender, err := ValidateGender(in.Gender)
	if err != nil {
		return nil, err
	}
	cat, sub, err := ValidateTaxonomy(in.Category, in.Subcategory)
	if err != nil {
		return nil, err
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}
	available := true
	if in.Available != nil {
		available = *in.Available
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}
	now := time.Now().UTC()
	return &models.Product{
		ID:          uuid.New().String(),
		Title:       title,
		Gender:      gender,
		Category:    cat,
		Subcategory: sub,
		Price:       in.Price,
		Description: strings.TrimSpace(in.Description),
		Images:      images,
		Available:   available,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Create validates and stores a new product.
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	p, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

// CreateWithImages uploads files and creates a product referencing them.
// Uploaded files are removed again if the product cannot be stored.
func (s *ProductService) CreateWithImages(ctx context.Context, in ProductInput, files []ImageUpload) (*models.Product, error) {
	if s.images == nil {
		return nil, newError(ErrUpstream, "image storage is not configured")
	}
	// validate everything before storing anything
	if _, err := s.build(in); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := s.images.Validate(f); err != nil {
			return nil, err
		}
	}

	urls := make([]string, 0, len(files))
	cleanup := func() {
		for _, u := range urls {
			s.images.DeleteByURL(ctx, u)
		}
	}
	for _, f := range files {
		img, err := s.images.Upload(ctx, f)
		if err != nil {
			cleanup()
			return nil, err
		}
		urls = append(urls, img.URL)
	}
	in.Images = append(append([]string{}, in.Images...), urls...)
	p, err := s.Create(ctx, in)
	if err != nil {
		cleanup()
		return nil, err
	}
	return p, nil
}

// Update applies patch to the product with the given id. The resulting
// (category, subcategory) pair is always re-validated.
func (s *ProductService) Update(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	if patch.empty() {
		return nil, newError(ErrValidation, "no fields to update")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, newError(ErrValidation, "title must not be empty")
		}
		p.Title = title
	}
	if patch.Gender != nil {
		g, err := ValidateGender(*patch.Gender)
		if err != nil {
			return nil, err
		}
		p.Gender = g
	}
	category, subcategory := p.Category, p.Subcategory
	if patch.Category != nil {
		category = *patch.Category
	}
	if patch.Subcategory != nil {
		subcategory = *patch.Subcategory
	}
	if p.Category, p.Subcategory, err = ValidateTaxonomy(category, subcategory); err != nil {
		return nil, err
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
		p.Price = *patch.Price
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Images != nil {
		p.Images = append([]string{}, (*patch.Images)...)
	}
	if patch.Available != nil {
		p.Available = *patch.Available
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "product not found")
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

// Delete removes a product, then makes a best-effort attempt to remove
// each of its images.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newError(ErrNotFound, "product not found")
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if s.images != nil {
		for _, url := range p.Images {
			s.images.DeleteByURL(ctx, url)
		}
	}
	s.log.Info().Str("product_id", id).Int("images", len(p.Images)).Msg("product deleted")
	return nil
}
