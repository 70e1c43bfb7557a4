package sse

import (
	"context"
	"testing"
	"time"

	"kanzey-ticketing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesSubscribersOfTicket(t *testing.T) {
	e := NewPaymentEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := e.Subscribe(ctx, "TKT-1")
	b := e.Subscribe(ctx, "TKT-1")
	other := e.Subscribe(ctx, "TKT-2")
	assert.Equal(t, 2, e.ClientCount("TKT-1"))

	e.Emit(models.PaymentUpdate{TicketID: "TKT-1", PaymentStatus: models.PaymentStatusCompleted, IsPaid: true})

	for _, ch := range []<-chan models.PaymentUpdate{a, b} {
		select {
		case u := <-ch:
			assert.True(t, u.IsPaid)
		case <-time.After(time.Second):
			t.Fatal("no update received")
		}
	}
	select {
	case <-other:
		t.Fatal("update leaked to another ticket")
	default:
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	e := NewPaymentEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	ch := e.Subscribe(ctx, "TKT-1")

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, e.ClientCount("TKT-1"))

	assert.NotPanics(t, func() { e.Emit(models.PaymentUpdate{TicketID: "TKT-1"}) })
}

func TestEmitDoesNotBlockOnSlowClient(t *testing.T) {
	e := NewPaymentEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = e.Subscribe(ctx, "TKT-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*3; i++ {
			e.Emit(models.PaymentUpdate{TicketID: "TKT-1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked")
	}
}
