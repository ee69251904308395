package services

import (
	"context"
	"fmt"
	"time"

	"jlrp/internal/models"
	"jlrp/internal/repositories"
)

// Overview is the admin dashboard summary.
type Overview struct {
	Products struct {
		Total     int64 `json:"total"`
		Available int64 `json:"available"`
	} `json:"products"`
	Orders struct {
		Total int64 `json:"total"`
		Today int64 `json:"today"`
	} `json:"orders"`
	Sales struct {
		TotalRevenue float64 `json:"total_revenue"`
		TodayRevenue float64 `json:"today_revenue"`
	} `json:"sales"`
	Returns struct {
		Pending int64 `json:"pending"`
	} `json:"returns"`
	LastUpdated time.Time `json:"last_updated"`
}

type DashboardService struct {
	repos repositories.Set
	now   func() time.Time
}

func NewDashboardService(repos repositories.Set) *DashboardService {
	return &DashboardService{repos: repos, now: time.Now}
}

// Overview collects counts and revenue. "Today" starts at midnight UTC and
// revenue only counts paid orders.
func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var ov Overview
	var err error
	if ov.Products.Total, err = s.repos.Products.Count(ctx, false); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	if ov.Products.Available, err = s.repos.Products.Count(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to count available products: %w", err)
	}
	stats, err := s.repos.Orders.Stats(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("failed to compute order stats: %w", err)
	}
	ov.Orders.Total = stats.Total
	ov.Orders.Today = stats.Today
	ov.Sales.TotalRevenue = stats.Revenue
	ov.Sales.TodayRevenue = stats.TodayRevenue
	if ov.Returns.Pending, err = s.repos.Returns.CountByStatus(ctx, models.ReturnPending); err != nil {
		return nil, fmt.Errorf("failed to count pending returns: %w", err)
	}
	ov.LastUpdated = now
	return &ov, nil
}
