package handlers

import (
	"strings"

	"jlrp/internal/middleware"
	"jlrp/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AdminHandler serves the dashboard and the image library.
type AdminHandler struct {
	dashboard *services.DashboardService
	images    *services.ImageService
	log       zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(dashboard *services.DashboardService, images *services.ImageService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		dashboard: dashboard,
		images:    images,
		log:       log,
	}
}

// RegisterRoutes registers the admin routes. Every route needs an admin.
func (h *AdminHandler) RegisterRoutes(router fiber.Router, requireAuth, requireAdmin fiber.Handler) {
	adminRoutes := router.Group("/admin")
	adminRoutes.Get("/overview", requireAuth, requireAdmin, h.HandleOverview)
	adminRoutes.Post("/upload-image", requireAuth, requireAdmin, h.HandleUploadImage)
	adminRoutes.Get("/images", requireAuth, requireAdmin, h.HandleListImages)
	adminRoutes.Delete("/image/:id", requireAuth, requireAdmin, h.HandleDeleteImage)
}

// HandleOverview returns the dashboard counters.
func (h *AdminHandler) HandleOverview(c *fiber.Ctx) error {
	overview, err := h.dashboard.Overview(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"stats":        overview,
		"last_updated": overview.LastUpdated,
	})
}

// HandleUploadImage stores an image in the library with optional title
// and description.
func (h *AdminHandler) HandleUploadImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.log, badRequest("file is required"))
	}
	upload, err := readUpload(fh, middleware.CurrentUser(c).Email)
	if err != nil {
		return respondError(c, h.log, err)
	}
	upload.Title = strings.TrimSpace(c.FormValue("title"))
	upload.Description = strings.TrimSpace(c.FormValue("description"))

	img, err := h.images.Upload(c.UserContext(), upload)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(img)
}

// HandleListImages pages through the image library, optionally filtered by title.
func (h *AdminHandler) HandleListImages(c *fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return respondError(c, h.log, err)
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if c.Query("limit") == "0" {
		return respondError(c, h.log, badRequest("limit must be between 1 and 200"))
	}

	page, err := h.images.List(c.UserContext(), c.Query("q"), skip, limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(page)
}

// HandleDeleteImage removes an image and its stored file.
func (h *AdminHandler) HandleDeleteImage(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.images.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"ok": true, "deleted_id": id})
}
