package quota

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpupload/internal/domain/policy"
)

type record struct {
	identity string
	size     int64
	created  time.Time
}

// memHistory counts calls so tests can assert on short-circuiting.
type memHistory struct {
	records []record
	calls   int
	err     error
}

func (h *memHistory) TotalSize(_ context.Context, identity string) (int64, error) {
	return h.sum(identity, time.Time{})
}

func (h *memHistory) SizeSince(_ context.Context, identity string, since time.Time) (int64, error) {
	return h.sum(identity, since)
}

func (h *memHistory) CountSince(_ context.Context, identity string, since time.Time) (int64, error) {
	h.calls++
	if h.err != nil {
		return 0, h.err
	}
	var n int64
	for _, r := range h.records {
		if r.identity == identity && !r.created.Before(since) {
			n++
		}
	}
	return n, nil
}

func (h *memHistory) sum(identity string, since time.Time) (int64, error) {
	h.calls++
	if h.err != nil {
		return 0, h.err
	}
	var n int64
	for _, r := range h.records {
		if r.identity == identity && !r.created.Before(since) {
			n += r.size
		}
	}
	return n, nil
}

const jid = "example@example.net"

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func allowed(l *policy.Limits) policy.Outcome {
	return policy.Outcome{Rule: 0, Limits: l}
}

func rejection(t *testing.T, err error) *Rejection {
	t.Helper()
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected *Rejection, got %v", err)
	return rej
}

func TestAdmitDenied(t *testing.T) {
	h := &memHistory{}
	err := Admit(context.Background(), policy.Outcome{Rule: -1}, h, "x", 1, now)

	rej := rejection(t, err)
	assert.Equal(t, DimensionAccess, rej.Dimension)
	assert.Equal(t, http.StatusForbidden, rej.Status)
	assert.Equal(t, 0, h.calls)
}

func TestAdmitNoLimits(t *testing.T) {
	h := &memHistory{}
	assert.NoError(t, Admit(context.Background(), allowed(&policy.Limits{}), h, jid, 1<<40, now))
	assert.Equal(t, 0, h.calls)
}

func TestAdmitMaxFileSize(t *testing.T) {
	h := &memHistory{}
	out := allowed(&policy.Limits{MaxFileSize: policy.Int64(100)})

	rej := rejection(t, Admit(context.Background(), out, h, jid, 150, now))
	assert.Equal(t, DimensionMaxFileSize, rej.Dimension)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rej.Status)

	assert.NoError(t, Admit(context.Background(), out, h, jid, 100, now))
	assert.Equal(t, 0, h.calls, "per-file cap must not query history")
}

func TestAdmitMaxTotalSize(t *testing.T) {
	h := &memHistory{}
	for i := 0; i < 10; i++ {
		h.records = append(h.records, record{jid, 300 * 1024, now.Add(-2 * time.Hour)})
	}
	out := allowed(&policy.Limits{MaxTotalSize: policy.Int64(3 * 1024 * 1024)})

	rej := rejection(t, Admit(context.Background(), out, h, jid, 300*1024, now))
	assert.Equal(t, DimensionMaxTotalSize, rej.Dimension)
	assert.Equal(t, http.StatusForbidden, rej.Status)

	// other identities are unaffected
	assert.NoError(t, Admit(context.Background(), out, h, "other@example.net", 300*1024, now))
}

func TestAdmitBytesPerWindow(t *testing.T) {
	h := &memHistory{records: []record{
		{jid, 400 * 1024, now.Add(-10 * time.Minute)},
		{jid, 400 * 1024, now.Add(-5 * time.Minute)},
		{jid, 400 * 1024, now.Add(-2 * time.Hour)},
	}}
	out := allowed(&policy.Limits{BytesPerWindow: &policy.Window{Window: time.Hour, Quota: 800 * 1024}})

	rej := rejection(t, Admit(context.Background(), out, h, jid, 400*1024, now))
	assert.Equal(t, DimensionBytesPerWindow, rej.Dimension)
	assert.Equal(t, http.StatusPaymentRequired, rej.Status)

	// an hour later the window has moved on
	assert.NoError(t, Admit(context.Background(), out, h, jid, 400*1024, now.Add(time.Hour)))
}

func TestAdmitUploadsPerWindow(t *testing.T) {
	h := &memHistory{}
	out := allowed(&policy.Limits{UploadsPerWindow: &policy.Window{Window: time.Hour, Quota: 3}})

	for i := 0; i < 3; i++ {
		require.NoError(t, Admit(context.Background(), out, h, jid, 10*1024, now))
		h.records = append(h.records, record{jid, 10 * 1024, now})
	}

	rej := rejection(t, Admit(context.Background(), out, h, jid, 10*1024, now))
	assert.Equal(t, DimensionUploadsPerWindow, rej.Dimension)
	assert.Equal(t, http.StatusPaymentRequired, rej.Status)
}

func TestAdmitOrderFirstFailureWins(t *testing.T) {
	h := &memHistory{records: []record{{jid, 1000, now}}}
	out := allowed(&policy.Limits{
		MaxFileSize:      policy.Int64(100),
		MaxTotalSize:     policy.Int64(500),
		UploadsPerWindow: &policy.Window{Window: time.Hour, Quota: 1},
	})

	assert.Equal(t, DimensionMaxFileSize, rejection(t, Admit(context.Background(), out, h, jid, 200, now)).Dimension)
	assert.Equal(t, DimensionMaxTotalSize, rejection(t, Admit(context.Background(), out, h, jid, 50, now)).Dimension)
}

func TestAdmitHistoryError(t *testing.T) {
	h := &memHistory{err: errors.New("db down")}
	out := allowed(&policy.Limits{MaxTotalSize: policy.Int64(10)})

	err := Admit(context.Background(), out, h, jid, 1, now)
	require.Error(t, err)
	var rej *Rejection
	assert.False(t, errors.As(err, &rej))
}

func TestAdmitMonotonicInSize(t *testing.T) {
	h := &memHistory{records: []record{
		{jid, 200, now.Add(-time.Minute)},
		{jid, 300, now.Add(-3 * time.Hour)},
	}}
	out := allowed(&policy.Limits{
		MaxFileSize:      policy.Int64(400),
		MaxTotalSize:     policy.Int64(1000),
		BytesPerWindow:   &policy.Window{Window: time.Hour, Quota: 500},
		UploadsPerWindow: &policy.Window{Window: time.Hour, Quota: 5},
	})

	var largest int64
	for size := int64(1); size <= 600; size++ {
		if Admit(context.Background(), out, h, jid, size, now) == nil {
			largest = size
		}
	}
	require.Equal(t, int64(300), largest)
	for size := int64(1); size <= largest; size++ {
		assert.NoError(t, Admit(context.Background(), out, h, jid, size, now), "size %d", size)
	}
}
