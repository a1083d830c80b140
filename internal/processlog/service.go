package processlog

import (
	"context"
	"fmt"
)

// ListRepository is the read access the trail service needs.
type ListRepository interface {
	List(ctx context.Context, f Filters) ([]Entry, error)
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
}

// TrailResult bundles entries with paging information.
type TrailResult struct {
	Entries []Entry
	Paging  PagingInfo
}

// Service serves the audit trail read side.
type Service struct {
	repo ListRepository
}

// NewService constructs a trail service.
func NewService(repo ListRepository) *Service {
	return &Service{repo: repo}
}

// Trail fetches a page of process log entries.
func (s *Service) Trail(ctx context.Context, f Filters, page, pageSize int) (TrailResult, error) {
	if s.repo == nil {
		return TrailResult{}, fmt.Errorf("processlog: repository not configured")
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page <= 0 {
		page = 1
	}
	f.Offset = (page - 1) * pageSize
	f.Limit = pageSize + 1

	entries, err := s.repo.List(ctx, f)
	if err != nil {
		return TrailResult{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return TrailResult{
		Entries: entries,
		Paging:  PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}
