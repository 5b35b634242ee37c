package kafka

import (
	"context"
	"errors"
	"testing"

	"ms-boxoffice/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestProducerPublishSetsTopicPerMessage(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Logger: logger.NewTestLogger()}

	require.NoError(t, p.Publish(context.Background(), "boxoffice.purchase.completed", "user-1", []byte(`{"a":1}`)))
	require.NoError(t, p.Publish(context.Background(), "boxoffice.payment.refunded", "user-2", []byte(`{}`)))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "boxoffice.purchase.completed", w.msgs[0].Topic)
	assert.Equal(t, []byte("user-1"), w.msgs[0].Key)
	assert.Equal(t, "boxoffice.payment.refunded", w.msgs[1].Topic)
}

func TestProducerPublishWrapsErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{Writer: &fakeWriter{err: boom}, Logger: logger.NewTestLogger()}

	err := p.Publish(context.Background(), "t", "k", nil)
	assert.ErrorIs(t, err, boom)
}

func TestEnsureTopicsExistNeedsBrokers(t *testing.T) {
	assert.Error(t, EnsureTopicsExist(nil, []string{"t"}, logger.NewTestLogger()))
}
