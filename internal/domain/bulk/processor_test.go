package bulk

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
	"github.com/example/hotel-distribution/internal/infrastructure/store/mocks"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func iptr(v int) *int {
	return &v
}

func i64ptr(v int64) *int64 {
	return &v
}

func bptr(v bool) *bool {
	return &v
}

func newBulkFixture(t *testing.T) (*Processor, *mocks.MockARIStore) {
	t.Helper()
	m := mocks.NewMockARIStore()
	m.SeedRoomType(store.RoomType{ID: "rt-1", HotelID: "hotel-1", Code: "DLX", TotalRooms: 10})

	p := NewProcessor(m)
	p.now = func() time.Time { return date(2026, 1, 1) }
	return p, m
}

// ============================================================
// Structural validation
// ============================================================

func TestProcessor_ProcessBatch_Empty(t *testing.T) {
	p, m := newBulkFixture(t)

	result, err := p.ProcessBatch(context.Background(), "hotel-1", nil)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.Processed)
	assert.Empty(t, m.AppendCalls)
}

func TestProcessor_ProcessBatch_TooLarge(t *testing.T) {
	p, _ := newBulkFixture(t)

	ops := make([]Operation, MaxBatchSize+1)
	for i := range ops {
		ops[i] = Operation{Date: "2026-06-01", RoomTypeCode: "DLX", Available: iptr(1)}
	}

	result, err := p.ProcessBatch(context.Background(), "hotel-1", ops)

	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Nil(t, result)
}

func TestProcessor_ProcessBatch_MinLOSGreaterThanMaxLOS(t *testing.T) {
	p, m := newBulkFixture(t)

	ops := []Operation{
		{Date: "2026-06-01", RoomTypeCode: "DLX", MinLOS: iptr(5), MaxLOS: iptr(3)},
	}

	result, err := p.ProcessBatch(context.Background(), "hotel-1", ops)

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].Index)
	assert.Contains(t, result.Errors[0].Message, "cannot be greater")

	// A structurally invalid batch never touches the store.
	assert.Empty(t, m.UpsertRestrictionCalls)
}

func TestProcessor_ProcessBatch_StructuralErrors(t *testing.T) {
	p, _ := newBulkFixture(t)

	tests := []struct {
		name    string
		op      Operation
		message string
	}{
		{"missing date", Operation{RoomTypeCode: "DLX", Available: iptr(1)}, "date is required"},
		{"missing room type", Operation{Date: "2026-06-01", Available: iptr(1)}, "room_type_code is required"},
		{"bad date format", Operation{Date: "06/01/2026", RoomTypeCode: "DLX", Available: iptr(1)}, "YYYY-MM-DD"},
		{"past date", Operation{Date: "2025-12-31", RoomTypeCode: "DLX", Available: iptr(1)}, "in the past"},
		{"no update fields", Operation{Date: "2026-06-01", RoomTypeCode: "DLX"}, "no update fields"},
		{"available out of range", Operation{Date: "2026-06-01", RoomTypeCode: "DLX", Available: iptr(1001)}, "out of range"},
		{"negative price", Operation{Date: "2026-06-01", RoomTypeCode: "DLX", Price: i64ptr(-1)}, "out of range"},
		{"min_los zero", Operation{Date: "2026-06-01", RoomTypeCode: "DLX", MinLOS: iptr(0)}, "out of range"},
		{"max_los too large", Operation{Date: "2026-06-01", RoomTypeCode: "DLX", MaxLOS: iptr(366)}, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.ProcessBatch(context.Background(), "hotel-1", []Operation{tt.op})
			require.NoError(t, err)
			assert.False(t, result.Success)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0].Message, tt.message)
		})
	}
}

// ============================================================
// Application
// ============================================================

func TestProcessor_ProcessBatch_AppliesAllFields(t *testing.T) {
	p, m := newBulkFixture(t)

	ops := []Operation{
		{
			Date:         "2026-06-01",
			RoomTypeCode: "DLX",
			Available:    iptr(7),
			Price:        i64ptr(9900),
			MinLOS:       iptr(2),
			StopSell:     bptr(false),
		},
	}

	result, err := p.ProcessBatch(context.Background(), "hotel-1", ops)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)

	rec, err := m.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Available)

	require.Len(t, m.UpsertRateCalls, 1)
	assert.Equal(t, "BAR", m.UpsertRateCalls[0].RatePlanCode)
	assert.Equal(t, int64(9900), m.UpsertRateCalls[0].Amount)
	assert.Equal(t, "USD", m.UpsertRateCalls[0].Currency)

	require.Len(t, m.UpsertRestrictionCalls, 1)
	patch := m.UpsertRestrictionCalls[0].Patch
	require.NotNil(t, patch.MinStay)
	assert.Equal(t, 2, *patch.MinStay)

	entries := m.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "BulkBatchProcessed", entries[0].EventType)
}

func TestProcessor_ProcessBatch_ClampsAvailabilityToCapacity(t *testing.T) {
	// Requesting 50 rooms on a 10-room type is corrected to 10 and still
	// reported as processed, not failed.
	p, m := newBulkFixture(t)

	ops := []Operation{
		{Date: "2026-06-01", RoomTypeCode: "DLX", Available: iptr(50)},
	}

	result, err := p.ProcessBatch(context.Background(), "hotel-1", ops)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)

	rec, err := m.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Available)
}

func TestProcessor_ProcessBatch_UnknownRoomTypeIsPerOpFailure(t *testing.T) {
	p, m := newBulkFixture(t)

	ops := []Operation{
		{Date: "2026-06-01", RoomTypeCode: "DLX", Available: iptr(5)},
		{Date: "2026-06-01", RoomTypeCode: "NOPE", Available: iptr(5)},
	}

	result, err := p.ProcessBatch(context.Background(), "hotel-1", ops)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Aborted)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Contains(t, result.Errors[0].Message, "NOPE")

	// Below the abort threshold the good operations commit.
	_, err = m.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 6, 1))
	assert.NoError(t, err)
}

// ============================================================
// Failure threshold
// ============================================================

func batchWithFailures(good, bad int) []Operation {
	ops := make([]Operation, 0, good+bad)
	for i := 0; i < good; i++ {
		ops = append(ops, Operation{
			Date:         fmt.Sprintf("2026-06-%02d", i%28+1),
			RoomTypeCode: "DLX",
			Available:    iptr(5),
		})
	}
	for i := 0; i < bad; i++ {
		ops = append(ops, Operation{
			Date:         "2026-06-01",
			RoomTypeCode: "MISSING",
			Available:    iptr(5),
		})
	}
	return ops
}

func TestProcessor_ProcessBatch_AbortsOverFailureThreshold(t *testing.T) {
	// 11 failures in a 100-operation batch crosses the 10% threshold: the
	// whole transaction rolls back.
	p, m := newBulkFixture(t)

	result, err := p.ProcessBatch(context.Background(), "hotel-1", batchWithFailures(89, 11))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Aborted)
	assert.Equal(t, 11, result.Failed)

	// Nothing committed, including the 89 good operations.
	_, err = m.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 6, 1))
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries := m.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "BulkBatchAborted", entries[0].EventType)
}

func TestProcessor_ProcessBatch_ExactlyAtThresholdCommits(t *testing.T) {
	// 10 failures in 100 is exactly 10%, which does not cross the threshold.
	p, m := newBulkFixture(t)

	result, err := p.ProcessBatch(context.Background(), "hotel-1", batchWithFailures(90, 10))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Aborted)
	assert.Equal(t, 90, result.Processed)
	assert.Equal(t, 10, result.Failed)

	_, err = m.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 6, 1))
	assert.NoError(t, err)

	entries := m.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "BulkBatchProcessed", entries[0].EventType)
}

func TestProcessor_ProcessBatch_AbortPointDependsOnOrder(t *testing.T) {
	// With the failures at the front, the threshold trips long before the
	// batch end and the remaining operations never run.
	p, m := newBulkFixture(t)

	ops := batchWithFailures(0, 11)
	ops = append(ops, batchWithFailures(89, 0)...)

	result, err := p.ProcessBatch(context.Background(), "hotel-1", ops)

	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.Zero(t, result.Processed)
	assert.Empty(t, m.SetAvailabilityCalls)
}
