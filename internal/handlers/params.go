package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"jlrp/internal/services"

	"github.com/gofiber/fiber/v2"
)

// queryInt reads an optional integer query parameter.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return v, nil
}

// queryFloat reads an optional decimal query parameter; nil when absent.
func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest("%s must be a number", key)
	}
	return &v, nil
}

// readUpload loads one multipart file into memory for validation.
func readUpload(fh *multipart.FileHeader, uploadedBy string) (services.ImageUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return services.ImageUpload{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return services.ImageUpload{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return services.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
		UploadedBy:  uploadedBy,
	}, nil
}

// formFiles returns the files sent under field, or none for a non-multipart body.
func formFiles(c *fiber.Ctx, field string) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[field]
}
