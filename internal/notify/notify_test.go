package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ms-boxoffice/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, body []byte) error {
	args := m.Called(ctx, topic, key, body)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, recipient Recipient, eventType EventType, payload interface{}) error {
	args := m.Called(ctx, recipient, eventType, payload)
	return args.Error(0)
}

func TestBrokerNotifierPublishesEnvelope(t *testing.T) {
	pub := new(mockPublisher)
	fixed := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	n := &BrokerNotifier{Publisher: pub, Prefix: "boxoffice", Now: func() time.Time { return fixed }}

	var body []byte
	pub.On("Publish", mock.Anything, "boxoffice.purchase.completed", "user-1", mock.Anything).
		Run(func(args mock.Arguments) { body = args.Get(3).([]byte) }).
		Return(nil)

	err := n.Notify(context.Background(), Recipient{UserID: "user-1", Email: "a@example.com"}, PurchaseCompleted,
		map[string]interface{}{"ticket_ids": []string{"t1", "t2"}})
	require.NoError(t, err)
	pub.AssertExpectations(t)

	var msg struct {
		Type       EventType              `json:"type"`
		Recipient  Recipient              `json:"recipient"`
		Payload    map[string]interface{} `json:"payload"`
		OccurredAt time.Time              `json:"occurred_at"`
	}
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, PurchaseCompleted, msg.Type)
	assert.Equal(t, "a@example.com", msg.Recipient.Email)
	assert.Len(t, msg.Payload["ticket_ids"], 2)
	assert.True(t, msg.OccurredAt.Equal(fixed))
}

func TestBrokerNotifierPropagatesErrors(t *testing.T) {
	pub := new(mockPublisher)
	boom := errors.New("broker down")
	pub.On("Publish", mock.Anything, "payment.refunded", "u", mock.Anything).Return(boom)

	n := &BrokerNotifier{Publisher: pub}
	assert.ErrorIs(t, n.Notify(context.Background(), Recipient{UserID: "u"}, PaymentRefunded, nil), boom)
}

func TestAsyncNeverFailsTheCaller(t *testing.T) {
	next := new(mockNotifier)
	done := make(chan struct{})
	next.On("Notify", mock.Anything, mock.Anything, TicketCheckedIn, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(errors.New("smtp down"))

	a := NewAsync(next, time.Second, logger.NewTestLogger())
	assert.NoError(t, a.Notify(context.Background(), Recipient{UserID: "u"}, TicketCheckedIn, nil))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never delivered")
	}
}
