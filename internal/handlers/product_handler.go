package handlers

import (
	"strconv"
	"strings"

	"jlrp/internal/middleware"
	"jlrp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	images   *services.ImageService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, images *services.ImageService, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		images:   images,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the product routes. Reads are public; writes
// need an admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, requireAuth, requireAdmin fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Post("/", requireAuth, requireAdmin, h.HandleCreateProduct)
	productRoutes.Post("/upload-image", requireAuth, requireAdmin, h.HandleUploadImage)
	productRoutes.Post("/create-with-images", requireAuth, requireAdmin, h.HandleCreateWithImages)
	productRoutes.Put("/:id", requireAuth, requireAdmin, h.HandleUpdateProduct)
	productRoutes.Patch("/:id", requireAuth, requireAdmin, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", requireAuth, requireAdmin, h.HandleDeleteProduct)
}

func parseProductQuery(c *fiber.Ctx) (services.ProductQuery, error) {
	q := services.ProductQuery{
		Gender:      c.Query("gender"),
		Subcategory: c.Query("subcategory"),
		SortBy:      c.Query("sort_by"),
	}
	var err error
	if q.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		return q, err
	}
	if q.Skip, err = queryInt(c, "skip", 0); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(c, "limit", 0); err != nil {
		return q, err
	}
	if c.Query("limit") == "0" {
		return q, badRequest("limit must be between 1 and 100")
	}
	if q.SortDir, err = queryInt(c, "sort_dir", 0); err != nil {
		return q, err
	}
	if c.Query("sort_dir") == "0" {
		return q, badRequest("sort_dir must be 1 or -1")
	}
	return q, nil
}

// HandleListProducts lists the catalog with filters, sorting and paging.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	q, err := parseProductQuery(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	products, err := h.service.List(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(products)
}

// HandleGetProduct retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a product from a JSON body.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, h.log, err)
	}
	product, err := h.service.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleCreateWithImages creates a product from a multipart form carrying
// the product fields and any number of "files".
func (h *ProductHandler) HandleCreateWithImages(c *fiber.Ctx) error {
	in := services.ProductInput{
		Title:       c.FormValue("title"),
		Gender:      c.FormValue("gender"),
		Category:    c.FormValue("category"),
		Subcategory: c.FormValue("subcategory"),
		Description: c.FormValue("description"),
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(c.FormValue("price")), 64)
	if err != nil {
		return respondError(c, h.log, badRequest("price must be a number"))
	}
	in.Price = price
	if err := check(h.validate, in); err != nil {
		return respondError(c, h.log, err)
	}

	uploader := middleware.CurrentUser(c).Email
	var files []services.ImageUpload
	for _, fh := range formFiles(c, "files") {
		upload, err := readUpload(fh, uploader)
		if err != nil {
			return respondError(c, h.log, err)
		}
		files = append(files, upload)
	}

	product, err := h.service.CreateWithImages(c.UserContext(), in, files)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUploadImage stores one image for later use in a product.
func (h *ProductHandler) HandleUploadImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.log, badRequest("file is required"))
	}
	upload, err := readUpload(fh, middleware.CurrentUser(c).Email)
	if err != nil {
		return respondError(c, h.log, err)
	}
	img, err := h.images.Upload(c.UserContext(), upload)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"filename": img.Filename,
		"url":      img.URL,
	})
}

// HandleUpdateProduct applies a partial update.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var patch services.ProductPatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, h.log, badRequest("Invalid request body"))
	}
	product, err := h.service.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes a product and, best effort, its images.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
