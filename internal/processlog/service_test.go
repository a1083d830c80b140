package processlog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryList struct {
	entries []Entry
}

func (m *memoryList) List(ctx context.Context, f Filters) ([]Entry, error) {
	filtered := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		filtered = append(filtered, e)
	}
	if f.Offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[f.Offset:]
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, nil
}

func seedEntries(n int) []Entry {
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, Entry{
			ID:         uuid.New(),
			Process:    ProcessImportInvoices,
			EntityType: EntityInvoice,
			EntityID:   uuid.New(),
			Status:     StatusCompleted,
			CreatedAt:  time.Now(),
		})
	}
	return entries
}

func TestTrailPaging(t *testing.T) {
	svc := NewService(&memoryList{entries: seedEntries(45)})
	ctx := context.Background()

	page1, err := svc.Trail(ctx, Filters{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, page1.Entries, 20)
	require.True(t, page1.Paging.HasNext)

	page3, err := svc.Trail(ctx, Filters{}, 3, 20)
	require.NoError(t, err)
	require.Len(t, page3.Entries, 5)
	require.False(t, page3.Paging.HasNext)
}

func TestTrailDefaultsAndBounds(t *testing.T) {
	svc := NewService(&memoryList{entries: seedEntries(25)})
	ctx := context.Background()

	res, err := svc.Trail(ctx, Filters{}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Paging.Page)
	require.Equal(t, 20, res.Paging.PageSize)
	require.True(t, res.Paging.HasNext)

	res, err = svc.Trail(ctx, Filters{}, 1, 500)
	require.NoError(t, err)
	require.Equal(t, 100, res.Paging.PageSize)
	require.Len(t, res.Entries, 25)
	require.False(t, res.Paging.HasNext)
}
