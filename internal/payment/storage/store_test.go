package storage_test

import (
	"context"
	"testing"
	"time"

	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/payment/storage"
	"kanzey-ticketing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttempt(t *testing.T) {
	bunDB := testutil.NewSQLiteDB(t)
	store := storage.NewBunStore(bunDB, logger.Discard())
	ctx := context.Background()

	first := &models.PaymentAttempt{
		TicketID:        "TKT-1",
		TransactionID:   "IT-1",
		Provider:        models.PaymentMethodWave,
		ServiceCode:     "SNPAIEMENTWAVE",
		Source:          models.AttemptSourceInitiate,
		RawStatus:       "PENDING",
		CanonicalStatus: models.PaymentStatusProcessing,
		CreatedAt:       time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, store.RecordAttempt(ctx, first))
	assert.NotEmpty(t, first.ID)

	require.NoError(t, store.RecordAttempt(ctx, &models.PaymentAttempt{
		TicketID:        "TKT-1",
		TransactionID:   "IT-1",
		Source:          models.AttemptSourceCallback,
		RawStatus:       "SUCCESSFUL",
		CanonicalStatus: models.PaymentStatusCompleted,
		RawPayload:      `{"status":"SUCCESSFUL"}`,
	}))
	require.NoError(t, store.RecordAttempt(ctx, &models.PaymentAttempt{
		TicketID:        "TKT-2",
		Source:          models.AttemptSourceVerify,
		CanonicalStatus: models.PaymentStatusFailed,
	}))

	attempts := testutil.Attempts(t, bunDB, "TKT-1")
	require.Len(t, attempts, 2)
	assert.Equal(t, models.AttemptSourceInitiate, attempts[0].Source)
	assert.Equal(t, models.AttemptSourceCallback, attempts[1].Source)
	assert.Equal(t, `{"status":"SUCCESSFUL"}`, attempts[1].RawPayload)

	assert.NoError(t, store.HealthCheck(ctx))
}
