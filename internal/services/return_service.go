package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jlrp/internal/models"
	"jlrp/internal/notify"
	"jlrp/internal/payment"
	"jlrp/internal/repositories"
	"jlrp/pkg/logger"

	"github.com/google/uuid"
)

const (
	minReturnReasonLength = 3
	returnListLimit       = 200
)

// Admin actions on a return request.
const (
	ReturnActionApprove        = "approve"
	ReturnActionReject         = "reject"
	ReturnActionSchedulePickup = "schedule-pickup"
)

var openReturnStatuses = []models.ReturnStatus{models.ReturnPending, models.ReturnPickupScheduled}

// ReturnInput is a customer's return request for one line item.
type ReturnInput struct {
	OrderID   string   `json:"order_id" validate:"required"`
	ProductID string   `json:"product_id" validate:"required"`
	Reason    string   `json:"reason" validate:"required,min=3"`
	Photos    []string `json:"photos"`
}

// ReturnAction is an admin decision on a return request.
type ReturnAction struct {
	RequestID string `json:"request_id" validate:"required"`
	Action    string `json:"action" validate:"required"`
	AdminNote string `json:"admin_note"`
}

// ReturnService handles the return and refund workflow.
type ReturnService struct {
	returns  repositories.ReturnRepository
	orders   repositories.OrderRepository
	gateway  payment.Gateway
	notifier notify.Dispatcher
	log      logger.Logger
}

func NewReturnService(
	returns repositories.ReturnRepository,
	orders repositories.OrderRepository,
	gateway payment.Gateway,
	notifier notify.Dispatcher,
	log logger.Logger,
) *ReturnService {
	return &ReturnService{
		returns:  returns,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
	}
}

// Request opens a return for one item of a delivered order owned by user.
// The refund amount is fixed here from the price on the order.
func (s *ReturnService) Request(ctx context.Context, user *models.User, in ReturnInput) (*models.ReturnRequest, error) {
	reason := strings.TrimSpace(in.Reason)
	if len([]rune(reason)) < minReturnReasonLength {
		return nil, newError(ErrValidation, "reason must be at least %d characters", minReturnReasonLength)
	}

	order, err := s.orders.GetByReference(ctx, strings.TrimSpace(in.OrderID))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "order not found")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if NormalizeEmail(order.Email) != NormalizeEmail(user.Email) {
		return nil, newError(ErrForbidden, "order does not belong to user")
	}
	if order.Status != models.FulfillmentDelivered {
		return nil, newError(ErrValidation, "order not delivered yet; cannot return")
	}

	var item *models.OrderItem
	for i := range order.Items {
		if order.Items[i].ProductID == in.ProductID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil, newError(ErrValidation, "product not found in order")
	}
	amount := payment.ToMinorUnits(item.Price)
	if amount <= 0 {
		return nil, newError(ErrValidation, "item has no refundable amount")
	}

	photos := in.Photos
	if photos == nil {
		photos = []string{}
	}
	key := models.ReturnLineKey(order.ID, item.ProductID)
	req := &models.ReturnRequest{
		ID:                uuid.New().String(),
		OrderID:           order.ID,
		ProductID:         item.ProductID,
		CustomerEmail:     user.Email,
		Reason:            reason,
		Photos:            photos,
		Status:            models.ReturnPending,
		RequestedAt:       time.Now().UTC(),
		RefundAmount:      amount,
		RazorpayPaymentID: order.RazorpayPaymentID,
		LineKey:           &key,
	}
	if err := s.returns.Create(ctx, req); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, newError(ErrConflict, "a return request for this item is already open")
		}
		return nil, fmt.Errorf("failed to create return request: %w", err)
	}
	s.log.Info().Str("return_id", req.ID).Str("order_id", order.ID).Int64("refund_amount", amount).Msg("return requested")
	return req, nil
}

// AdminList returns the newest requests, optionally filtered by status.
func (s *ReturnService) AdminList(ctx context.Context, status string) ([]models.ReturnRequest, error) {
	st := models.ReturnStatus(strings.ToLower(strings.TrimSpace(status)))
	switch st {
	case "", models.ReturnPending, models.ReturnPickupScheduled, models.ReturnRefunding,
		models.ReturnApproved, models.ReturnRefunded, models.ReturnRejected:
	default:
		return nil, newError(ErrValidation, "unknown return status %q", status)
	}
	items, err := s.returns.List(ctx, st, returnListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list return requests: %w", err)
	}
	if items == nil {
		items = []models.ReturnRequest{}
	}
	return items, nil
}

// AdminAction applies an admin decision to a return request.
func (s *ReturnService) AdminAction(ctx context.Context, in ReturnAction) (*models.ReturnRequest, error) {
	req, err := s.load(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	note := strings.TrimSpace(in.AdminNote)

	switch strings.ToLower(strings.TrimSpace(in.Action)) {
	case ReturnActionApprove:
		return s.approve(ctx, req, note)
	case ReturnActionReject:
		return s.reject(ctx, req, note)
	case ReturnActionSchedulePickup:
		return s.schedulePickup(ctx, req, note)
	default:
		return nil, newError(ErrValidation, "unknown action %q", in.Action)
	}
}

func (s *ReturnService) load(ctx context.Context, id string) (*models.ReturnRequest, error) {
	req, err := s.returns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "return request not found")
		}
		return nil, fmt.Errorf("failed to load return request: %w", err)
	}
	return req, nil
}

func isOpenReturn(status models.ReturnStatus) bool {
	for _, s := range openReturnStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// claimError explains why a status swap did not happen, based on the
// request's state after the attempt.
func (s *ReturnService) claimError(ctx context.Context, id, action string) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	switch current.Status {
	case models.ReturnRefunding, models.ReturnRefunded, models.ReturnApproved:
		return newError(ErrAlreadyProcessed, "already processed")
	default:
		return newError(ErrInvalidTransition, "cannot %s a %s request", action, current.Status)
	}
}

func (s *ReturnService) approve(ctx context.Context, req *models.ReturnRequest, note string) (*models.ReturnRequest, error) {
	prior := req.Status
	if !isOpenReturn(prior) {
		return nil, s.claimError(ctx, req.ID, ReturnActionApprove)
	}
	ok, err := s.returns.CompareAndSetStatus(ctx, req.ID, []models.ReturnStatus{prior}, models.ReturnRefunding)
	if err != nil {
		return nil, fmt.Errorf("failed to claim return request: %w", err)
	}
	if !ok {
		return nil, s.claimError(ctx, req.ID, ReturnActionApprove)
	}
	log := s.log.With().Str("return_id", req.ID).Logger()

	release := func() {
		if _, err := s.returns.CompareAndSetStatus(ctx, req.ID, []models.ReturnStatus{models.ReturnRefunding}, prior); err != nil {
			log.Error().Err(err).Msg("failed to release refund claim")
		}
	}

	if req.RazorpayPaymentID == "" || req.RefundAmount <= 0 {
		release()
		return nil, newError(ErrValidation, "payment id or amount missing; cannot refund")
	}

	refundID, err := s.gateway.Refund(ctx, req.RazorpayPaymentID, req.RefundAmount)
	if err != nil {
		release()
		log.Error().Err(err).Str("payment_id", req.RazorpayPaymentID).Msg("refund failed")
		return nil, wrapError(ErrUpstream, err, "refund failed")
	}

	now := time.Now().UTC()
	req.Status = models.ReturnRefunded
	req.RazorpayRefundID = refundID
	req.AdminNote = note
	req.AdminActionAt = &now
	if err := s.returns.Update(ctx, req); err != nil {
		// The money has moved; the row is stuck in refunding and needs a manual fix.
		log.Error().Err(err).Str("refund_id", refundID).Msg("refund issued but request not updated")
		return nil, fmt.Errorf("failed to record refund %s: %w", refundID, err)
	}

	s.notifier.Dispatch(notify.Job{
		Template: notify.TemplateReturnRefunded,
		To:       req.CustomerEmail,
		Data: map[string]any{
			"order_id":      req.OrderID,
			"refund_amount": notify.FormatPaise(req.RefundAmount),
			"refund_id":     refundID,
			"admin_note":    note,
		},
	})
	log.Info().Str("refund_id", refundID).Int64("amount", req.RefundAmount).Msg("return refunded")
	return req, nil
}

func (s *ReturnService) reject(ctx context.Context, req *models.ReturnRequest, note string) (*models.ReturnRequest, error) {
	ok, err := s.returns.CompareAndSetStatus(ctx, req.ID, openReturnStatuses, models.ReturnRejected)
	if err != nil {
		return nil, fmt.Errorf("failed to reject return request: %w", err)
	}
	if !ok {
		return nil, s.claimError(ctx, req.ID, ReturnActionReject)
	}

	now := time.Now().UTC()
	req.Status = models.ReturnRejected
	req.AdminNote = note
	req.AdminActionAt = &now
	req.LineKey = nil
	if err := s.returns.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to update return request: %w", err)
	}

	s.notifier.Dispatch(notify.Job{
		Template: notify.TemplateReturnRejected,
		To:       req.CustomerEmail,
		Data: map[string]any{
			"order_id":   req.OrderID,
			"admin_note": note,
		},
	})
	return req, nil
}

func (s *ReturnService) schedulePickup(ctx context.Context, req *models.ReturnRequest, note string) (*models.ReturnRequest, error) {
	ok, err := s.returns.CompareAndSetStatus(ctx, req.ID, []models.ReturnStatus{models.ReturnPending}, models.ReturnPickupScheduled)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule pickup: %w", err)
	}
	if !ok {
		return nil, s.claimError(ctx, req.ID, ReturnActionSchedulePickup)
	}

	now := time.Now().UTC()
	req.Status = models.ReturnPickupScheduled
	req.AdminActionAt = &now
	if note != "" {
		req.AdminNote = note
	}
	if err := s.returns.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to update return request: %w", err)
	}
	return req, nil
}
