package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"kanzey-ticketing/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func TestPublish(t *testing.T) {
	w := new(MockWriter)
	p := NewProducerWithWriter(w, logger.Discard())

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		var body map[string]string
		_ = json.Unmarshal(msgs[0].Value, &body)
		return msgs[0].Topic == "ticketing.ticket.issued" &&
			string(msgs[0].Key) == "TKT-1" &&
			body["ticketId"] == "TKT-1"
	})).Return(nil).Once()

	err := p.Publish(context.Background(), "ticketing.ticket.issued", "TKT-1", map[string]string{"ticketId": "TKT-1"})
	require.NoError(t, err)
	w.AssertExpectations(t)
}

func TestPublish_WriterError(t *testing.T) {
	w := new(MockWriter)
	p := NewProducerWithWriter(w, logger.Discard())
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := p.Publish(context.Background(), "ticketing.payment.updated", "TKT-1", struct{}{})
	assert.ErrorContains(t, err, "broker down")
}

func TestPublish_Unmarshalable(t *testing.T) {
	w := new(MockWriter)
	p := NewProducerWithWriter(w, logger.Discard())

	err := p.Publish(context.Background(), "t", "k", make(chan int))
	assert.Error(t, err)
	w.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}
