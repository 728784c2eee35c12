package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	upto "github.com/radiustechsystems/x402-upto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(nonce string) upto.AuditRecord {
	return upto.AuditRecord{
		Payer:            "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Recipient:        "0x0000000000000000000000000000000000dEaD",
		Token:            "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		AuthorizedAmount: "1000000",
		Nonce:            nonce,
		Network:          "eip155:84532",
		CreatedAt:        1000,
	}
}

func TestRecordVerifiedIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordVerified(ctx, testRecord("nonce-1")))
	require.NoError(t, store.RecordVerified(ctx, testRecord("nonce-1")))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalPayments)
}

func TestRecordSettledTransitionsFromVerified(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordVerified(ctx, testRecord("nonce-2")))
	require.NoError(t, store.RecordSettled(ctx, "nonce-2", "43700", "0xabc", 2000))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SettledPayments)
	assert.Equal(t, "43700", stats.TotalSettled)
}

func TestRecordFailedTransitionsFromVerified(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordVerified(ctx, testRecord("nonce-3")))
	require.NoError(t, store.RecordFailed(ctx, "nonce-3", "transaction_reverted", 2000))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalPayments)
	assert.Equal(t, int64(0), stats.SettledPayments)
}

func TestStatsComputesSavingsPercent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordVerified(ctx, testRecord("nonce-4")))
	require.NoError(t, store.RecordSettled(ctx, "nonce-4", "500000", "0xabc", 2000))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000000", stats.TotalAuthorized)
	assert.Equal(t, "500000", stats.TotalSettled)
	assert.Equal(t, int64(50), stats.SavingsPercent)
}

func TestStatsRoundsSavingsPercentHalfUp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testRecord("nonce-5")
	record.AuthorizedAmount = "3"
	require.NoError(t, store.RecordVerified(ctx, record))
	require.NoError(t, store.RecordSettled(ctx, "nonce-5", "1", "0xabc", 2000))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(67), stats.SavingsPercent)
}

func TestStatsWithNoRows(t *testing.T) {
	store := newTestStore(t)
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalPayments)
	assert.Equal(t, int64(0), stats.SavingsPercent)
}
