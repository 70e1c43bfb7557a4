package sse

import (
	"context"
	"sync"

	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/monitoring"
)

const clientBuffer = 8

// PaymentEventEmitter fans payment status changes out to the buyers waiting on
// a ticket's checkout page.
type PaymentEventEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.PaymentUpdate
}

func NewPaymentEventEmitter() *PaymentEventEmitter {
	return &PaymentEventEmitter{
		clients: make(map[string][]chan models.PaymentUpdate),
	}
}

// Subscribe registers a client for one ticket. The channel is closed once ctx is done.
func (e *PaymentEventEmitter) Subscribe(ctx context.Context, ticketID string) <-chan models.PaymentUpdate {
	ch := make(chan models.PaymentUpdate, clientBuffer)

	e.mu.Lock()
	e.clients[ticketID] = append(e.clients[ticketID], ch)
	e.mu.Unlock()
	monitoring.StreamOpened()

	go func() {
		<-ctx.Done()
		e.remove(ticketID, ch)
		monitoring.StreamClosed()
	}()
	return ch
}

// Emit never blocks; a client whose buffer is full misses the update.
func (e *PaymentEventEmitter) Emit(update models.PaymentUpdate) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[update.TicketID] {
		select {
		case ch <- update:
		default:
		}
	}
}

func (e *PaymentEventEmitter) ClientCount(ticketID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[ticketID])
}

func (e *PaymentEventEmitter) remove(ticketID string, ch chan models.PaymentUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[ticketID]
	for i, c := range clients {
		if c == ch {
			e.clients[ticketID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[ticketID]) == 0 {
		delete(e.clients, ticketID)
	}
}
