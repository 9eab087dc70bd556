//go:build integration

package donation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefpool/internal/donation"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
	"reliefpool/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	db := containers.StartPostgres(t)
	store := donation.NewPostgresStore(db)
	ctx := context.Background()

	donor := domain.Address("rIntegrationDonorWallet00001")
	newDonation := func(hash domain.TxHash, amount domain.Drops) donation.Donation {
		return donation.Donation{
			ID:            domain.NewDonationID(),
			DonorAddress:  donor,
			Amount:        amount,
			Currency:      domain.CurrencyXRP,
			PaymentTxHash: hash,
			BatchStatus:   donation.BatchStatusPending,
			CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	t.Run("create and read back", func(t *testing.T) {
		d := newDonation("IT_HASH_1", domain.FromXRP(25))
		require.NoError(t, store.Create(ctx, d))

		got, err := store.GetByTxHash(ctx, d.PaymentTxHash)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, d.Amount, got.Amount)
		assert.Equal(t, donation.BatchStatusPending, got.BatchStatus)
		assert.True(t, got.BatchID.IsNil())
	})

	t.Run("duplicate payment hash conflicts", func(t *testing.T) {
		d := newDonation("IT_HASH_DUP", domain.FromXRP(5))
		require.NoError(t, store.Create(ctx, d))

		dup := newDonation("IT_HASH_DUP", domain.FromXRP(5))
		err := store.Create(ctx, dup)
		require.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("assign batch locks the rows", func(t *testing.T) {
		a := newDonation("IT_HASH_A", domain.FromXRP(60))
		b := newDonation("IT_HASH_B", domain.FromXRP(40))
		require.NoError(t, store.Create(ctx, a))
		require.NoError(t, store.Create(ctx, b))

		require.NoError(t, store.AssignBatch(ctx, []domain.DonationID{a.ID, b.ID}, "batch_it_1"))

		batched, err := store.ListByBatch(ctx, "batch_it_1")
		require.NoError(t, err)
		require.Len(t, batched, 2)
		for _, d := range batched {
			assert.Equal(t, donation.BatchStatusLocked, d.BatchStatus)
			assert.Equal(t, domain.BatchID("batch_it_1"), d.BatchID)
		}

		pending, err := store.ListPending(ctx)
		require.NoError(t, err)
		for _, d := range pending {
			assert.NotEqual(t, a.ID, d.ID)
			assert.NotEqual(t, b.ID, d.ID)
		}
	})

	t.Run("missing hash is not found", func(t *testing.T) {
		_, err := store.GetByTxHash(ctx, "IT_HASH_MISSING")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
