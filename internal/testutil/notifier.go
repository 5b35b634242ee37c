package testutil

import (
	"context"
	"sync"

	"ms-boxoffice/internal/notify"
)

// Sent is one captured notification.
type Sent struct {
	Recipient notify.Recipient
	Type      notify.EventType
	Payload   interface{}
}

// RecordingNotifier captures notifications synchronously.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *RecordingNotifier) Notify(_ context.Context, recipient notify.Recipient, eventType notify.EventType, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Recipient: recipient, Type: eventType, Payload: payload})
	return nil
}

func (r *RecordingNotifier) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *RecordingNotifier) Types() []notify.EventType {
	var types []notify.EventType
	for _, s := range r.Sent() {
		types = append(types, s.Type)
	}
	return types
}
