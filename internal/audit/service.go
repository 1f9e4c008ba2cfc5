package audit

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultPageSize matches the admin audit log listing.
	DefaultPageSize = 100
	// MaxPageSize caps a single page.
	MaxPageSize = 500
	// MaxExportRows caps CSV exports.
	MaxExportRows = 10000
	// MaxPage keeps the page offset within int range at MaxPageSize.
	MaxPage = math.MaxInt / MaxPageSize
)

// ErrPageOutOfRange is returned for pages beyond MaxPage.
var ErrPageOutOfRange = errors.New("audit: page out of range")

// EventLister reads stored audit events.
type EventLister interface {
	ListEvents(ctx context.Context, params ListParams) ([]Event, error)
}

// Service serves the read side of the audit log.
type Service struct {
	repo EventLister
}

// NewService creates a new audit timeline service.
func NewService(repo EventLister) *Service {
	return &Service{repo: repo}
}

// Timeline returns a page of events, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		return Result{}, ErrPageOutOfRange
	}
	events, err := s.repo.ListEvents(ctx, ListParams{
		From:   filters.From,
		To:     filters.To,
		Actor:  filters.Actor,
		Action: filters.Action,
		Module: filters.Module,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize + 1,
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(events) > pageSize
	if hasNext {
		events = events[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Events: events, Paging: paging}, nil
}

// Export returns every matching event up to MaxExportRows.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Event, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.ListEvents(ctx, ListParams{
		From:   filters.From,
		To:     filters.To,
		Actor:  filters.Actor,
		Action: filters.Action,
		Module: filters.Module,
		Limit:  MaxExportRows,
	})
}
