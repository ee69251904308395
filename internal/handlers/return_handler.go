package handlers

import (
	"jlrp/internal/middleware"
	"jlrp/internal/models"
	"jlrp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ReturnHandler handles return requests and their admin workflow.
type ReturnHandler struct {
	service  *services.ReturnService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewReturnHandler creates a new ReturnHandler.
func NewReturnHandler(service *services.ReturnService, log zerolog.Logger) *ReturnHandler {
	return &ReturnHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the return routes with the Fiber app.
func (h *ReturnHandler) RegisterRoutes(router fiber.Router, requireAuth, requireAdmin fiber.Handler) {
	returnRoutes := router.Group("/returns")
	returnRoutes.Post("/request", requireAuth, h.HandleRequestReturn)
	returnRoutes.Get("/admin/list", requireAuth, requireAdmin, h.HandleListReturns)
	returnRoutes.Post("/admin/action", requireAuth, requireAdmin, h.HandleReturnAction)
}

// HandleRequestReturn opens a return for one item of the caller's order.
func (h *ReturnHandler) HandleRequestReturn(c *fiber.Ctx) error {
	var in services.ReturnInput
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, h.log, err)
	}

	req, err := h.service.Request(c.UserContext(), middleware.CurrentUser(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// HandleListReturns lists return requests, optionally by status.
func (h *ReturnHandler) HandleListReturns(c *fiber.Ctx) error {
	items, err := h.service.AdminList(c.UserContext(), c.Query("status"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(items)
}

// HandleReturnAction approves, rejects or schedules pickup for a request.
func (h *ReturnHandler) HandleReturnAction(c *fiber.Ctx) error {
	var in services.ReturnAction
	if err := bind(c, h.validate, &in); err != nil {
		return respondError(c, h.log, err)
	}

	req, err := h.service.AdminAction(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info().Str("return_id", req.ID).Str("action", in.Action).
		Str("by", middleware.CurrentUser(c).Email).Msg("return request actioned")

	body := fiber.Map{"ok": true, "return": req}
	if req.Status == models.ReturnRefunded {
		body["refund"] = fiber.Map{
			"id":     req.RazorpayRefundID,
			"amount": req.RefundAmount,
		}
	}
	return c.JSON(body)
}
