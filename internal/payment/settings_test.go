package payment

import (
	"context"
	"testing"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestSettingsStoreSeedsDefaults(t *testing.T) {
	client, mr := setupTestRedis(t)
	defaults := SettingsFromConfig([]string{"card", "cash"}, 10*time.Second)
	s := NewSettingsStore(client, defaults, time.Minute, logger.NewTestLogger())

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
	assert.True(t, mr.Exists(SettingsKey))
	assert.Equal(t, time.Minute, mr.TTL(SettingsKey))
}

func TestSettingsStoreSaveAndInvalidate(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	s := NewSettingsStore(client, SettingsFromConfig([]string{"card", "cash"}, 10*time.Second), time.Minute, logger.NewTestLogger())

	require.NoError(t, s.Save(ctx, Settings{
		EnabledMethods: []models.PaymentMethod{models.MethodCard},
		GatewayTimeout: 3 * time.Second,
	}))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.Enabled(models.MethodCash))
	assert.Equal(t, 3*time.Second, got.GatewayTimeout)

	require.NoError(t, s.Invalidate(ctx))
	assert.False(t, mr.Exists(SettingsKey))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Enabled(models.MethodCash))
	assert.Equal(t, 10*time.Second, got.GatewayTimeout)
}

func TestSettingsStoreRejectsInvalidRecords(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	s := NewSettingsStore(client, SettingsFromConfig([]string{"card"}, 10*time.Second), time.Minute, logger.NewTestLogger())

	tests := []struct {
		name     string
		settings Settings
	}{
		{"no methods", Settings{GatewayTimeout: time.Second}},
		{"unknown method", Settings{EnabledMethods: []models.PaymentMethod{"bitcoin"}, GatewayTimeout: time.Second}},
		{"duplicate method", Settings{EnabledMethods: []models.PaymentMethod{models.MethodCard, models.MethodCard}, GatewayTimeout: time.Second}},
		{"no timeout", Settings{EnabledMethods: []models.PaymentMethod{models.MethodCard}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Save(ctx, tc.settings)
			assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
			assert.False(t, mr.Exists(SettingsKey))
		})
	}
}

func TestSettingsStoreFillsMissingTimeout(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewSettingsStore(client, SettingsFromConfig([]string{"card"}, 10*time.Second), time.Minute, logger.NewTestLogger())
	require.NoError(t, mr.Set(SettingsKey, `{"enabled_methods":["cash"]}`))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Enabled(models.MethodCash))
	assert.Equal(t, 10*time.Second, got.GatewayTimeout)
}

func TestSettingsStoreFallsBackWhenRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()
	s := NewSettingsStore(client, SettingsFromConfig([]string{"card"}, 10*time.Second), time.Minute, logger.NewTestLogger())

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Enabled(models.MethodCard))
}

func TestSettingsCheck(t *testing.T) {
	s := SettingsFromConfig([]string{"card"}, 10*time.Second)

	assert.NoError(t, s.Check(models.MethodCard))
	assert.ErrorIs(t, s.Check(models.MethodCash), apperr.ErrPaymentMethodDisabled)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(s.Check("bitcoin")))
}
