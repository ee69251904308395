package services_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"jlrp/internal/models"
	"jlrp/internal/repositories"
	"jlrp/internal/services"
	"jlrp/internal/storage"
	"jlrp/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T { return &v }

func TestProductService_ListDefaults(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, nil, logger.Nop())

	expected := models.ProductFilter{Gender: "women", Subcategory: "kurti", Limit: 25, SortBy: "created_at", SortDir: -1}
	mockRepo.On("List", mock.Anything, expected).Return([]models.Product{{ID: "1", Title: "Kurti"}}, nil).Once()

	products, err := service.List(context.Background(), services.ProductQuery{Gender: " Women ", Subcategory: "KURTI"})
	assert.NoError(t, err)
	assert.Len(t, products, 1)
	mockRepo.AssertExpectations(t)
}

func TestProductService_ListValidation(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, nil, logger.Nop())
	ctx := context.Background()

	cases := map[string]services.ProductQuery{
		"gender":    {Gender: "kids"},
		"skip":      {Skip: -1},
		"limit":     {Limit: 101},
		"negative":  {Limit: -5},
		"sort_by":   {SortBy: "stock"},
		"sort_dir":  {SortDir: 2},
		"price gap": {MinPrice: ptr(500.0), MaxPrice: ptr(100.0)},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.List(ctx, q)
			assert.True(t, errors.Is(err, services.ErrValidation))
		})
	}

	_, err := service.List(ctx, services.ProductQuery{Gender: "kids"})
	assert.Equal(t, "gender must be 'men' or 'women'", services.Message(err))
	mockRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestProductService_Create(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, nil, logger.Nop())
	ctx := context.Background()

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil).Once()
	p, err := service.Create(ctx, services.ProductInput{
		Title: " Blue Jeans ", Gender: "MEN", Category: "Clothing", Subcategory: " Jeans", Price: 1299.5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Blue Jeans", p.Title)
	assert.Equal(t, "men", p.Gender)
	assert.Equal(t, "clothing", p.Category)
	assert.Equal(t, "jeans", p.Subcategory)
	assert.True(t, p.Available)
	assert.Equal(t, []string{}, p.Images)
	mockRepo.AssertExpectations(t)

	_, err = service.Create(ctx, services.ProductInput{Title: "Saree", Gender: "women", Category: "clothing", Subcategory: "sneakers", Price: 10})
	assert.True(t, errors.Is(err, services.ErrValidation))
	_, err = service.Create(ctx, services.ProductInput{Title: "Saree", Gender: "women", Category: "shoes", Subcategory: "saree", Price: 10})
	assert.True(t, errors.Is(err, services.ErrValidation))
	_, err = service.Create(ctx, services.ProductInput{Title: "Saree", Gender: "women", Category: "clothing", Subcategory: "saree", Price: -1})
	assert.True(t, errors.Is(err, services.ErrValidation))
	_, err = service.Create(ctx, services.ProductInput{Title: "  ", Gender: "women", Category: "clothing", Subcategory: "saree"})
	assert.True(t, errors.Is(err, services.ErrValidation))

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(errors.New("database error")).Once()
	_, err = service.Create(ctx, services.ProductInput{Title: "Shirt", Gender: "men", Category: "clothing", Subcategory: "shirt", Price: 10})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
	mockRepo.AssertExpectations(t)
}

func TestProductService_UpdateCrossChecksTaxonomy(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, nil, logger.Nop())
	ctx := context.Background()

	existing := func() *models.Product {
		return &models.Product{ID: "1", Title: "Tee", Gender: "men", Category: "clothing", Subcategory: "tshirt", Price: 10}
	}

	_, err := service.Update(ctx, "1", services.ProductPatch{})
	assert.True(t, errors.Is(err, services.ErrValidation), "empty update")

	mockRepo.On("GetByID", mock.Anything, "1").Return(existing(), nil).Once()
	_, err = service.Update(ctx, "1", services.ProductPatch{Subcategory: ptr("handbag")})
	assert.True(t, errors.Is(err, services.ErrValidation))

	mockRepo.On("GetByID", mock.Anything, "1").Return(existing(), nil).Once()
	mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil).Once()
	updated, err := service.Update(ctx, "1", services.ProductPatch{Subcategory: ptr("Shirt"), Price: ptr(15.0), Available: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "shirt", updated.Subcategory)
	assert.Equal(t, 15.0, updated.Price)
	assert.False(t, updated.Available)
	assert.Equal(t, "Tee", updated.Title)

	mockRepo.On("GetByID", mock.Anything, "99").Return(nil, repositories.ErrNotFound).Once()
	_, err = service.Update(ctx, "99", services.ProductPatch{Title: ptr("x")})
	assert.True(t, errors.Is(err, services.ErrNotFound))
	mockRepo.AssertExpectations(t)
}

func TestProductService_DeleteRemovesImages(t *testing.T) {
	ctx := context.Background()
	repos := repositories.NewMemorySet()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8000")
	require.NoError(t, err)
	images := services.NewImageService(repos.Images, store, 5<<20, logger.Nop())
	service := services.NewProductService(repos.Products, images, logger.Nop())

	p, err := service.CreateWithImages(ctx, services.ProductInput{
		Title: "Kurti", Gender: "women", Category: "clothing", Subcategory: "kurti", Price: 799,
	}, []services.ImageUpload{{Filename: "front.png", ContentType: "image/png", Data: pngBytes(t), UploadedBy: "admin"}})
	require.NoError(t, err)
	require.Len(t, p.Images, 1)

	page, err := images.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	require.NoError(t, service.Delete(ctx, p.ID))
	_, err = service.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, services.ErrNotFound))

	page, err = images.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)
	entries, _ := readDir(store.Dir())
	assert.Empty(t, entries)

	assert.True(t, errors.Is(service.Delete(ctx, p.ID), services.ErrNotFound))
}

func TestProductService_CreateWithImagesValidatesFirst(t *testing.T) {
	ctx := context.Background()
	repos := repositories.NewMemorySet()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8000")
	require.NoError(t, err)
	images := services.NewImageService(repos.Images, store, 5<<20, logger.Nop())
	service := services.NewProductService(repos.Products, images, logger.Nop())

	_, err = service.CreateWithImages(ctx, services.ProductInput{
		Title: "Kurti", Gender: "women", Category: "clothing", Subcategory: "kurti", Price: 799,
	}, []services.ImageUpload{
		{Filename: "ok.png", ContentType: "image/png", Data: pngBytes(t)},
		{Filename: "fake.png", ContentType: "image/png", Data: []byte("not really an image")},
	})
	assert.True(t, errors.Is(err, services.ErrValidation))

	entries, _ := readDir(store.Dir())
	assert.Empty(t, entries, "nothing stored when any file is invalid")
}
