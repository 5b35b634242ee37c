package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"

	"github.com/go-redis/redis/v8"
)

const SettingsKey = "boxoffice:payment-settings"

// Settings is the payment configuration record: which methods are on sale
// and how long a gateway charge may take.
type Settings struct {
	EnabledMethods []models.PaymentMethod `json:"enabled_methods"`
	GatewayTimeout time.Duration          `json:"gateway_timeout"`
}

// Validate rejects a record that would leave purchases unusable.
func (s Settings) Validate() error {
	if len(s.EnabledMethods) == 0 {
		return apperr.Validation(apperr.CodeInvalidInput, "at least one payment method must be enabled")
	}
	seen := make(map[models.PaymentMethod]bool, len(s.EnabledMethods))
	for _, m := range s.EnabledMethods {
		if !m.Valid() {
			return apperr.Validation(apperr.CodeInvalidInput, fmt.Sprintf("unknown payment method %q", m))
		}
		if seen[m] {
			return apperr.Validation(apperr.CodeInvalidInput, fmt.Sprintf("payment method %q listed twice", m))
		}
		seen[m] = true
	}
	if s.GatewayTimeout <= 0 {
		return apperr.Validation(apperr.CodeInvalidInput, "gateway timeout must be positive")
	}
	return nil
}

func (s Settings) Enabled(m models.PaymentMethod) bool {
	for _, e := range s.EnabledMethods {
		if e == m {
			return true
		}
	}
	return false
}

// Check rejects unknown or disabled methods.
func (s Settings) Check(m models.PaymentMethod) error {
	if !m.Valid() {
		return apperr.Validation(apperr.CodeInvalidInput, fmt.Sprintf("unknown payment method %q", m))
	}
	if !s.Enabled(m) {
		return apperr.Validation(apperr.CodePaymentMethodDisabled, fmt.Sprintf("payment method %q is disabled", m))
	}
	return nil
}

type SettingsSource interface {
	Load(ctx context.Context) (Settings, error)
}

// StaticSettings always returns the same record.
type StaticSettings Settings

func (s StaticSettings) Load(context.Context) (Settings, error) {
	return Settings(s), nil
}

// SettingsStore caches the settings record in Redis. Writes go through
// Save and Invalidate; nothing mutates settings in process memory.
type SettingsStore struct {
	Client   *redis.Client
	Defaults Settings
	TTL      time.Duration
	Logger   *logger.Logger
}

func NewSettingsStore(client *redis.Client, defaults Settings, ttl time.Duration, l *logger.Logger) *SettingsStore {
	return &SettingsStore{Client: client, Defaults: defaults, TTL: ttl, Logger: l}
}

// Load returns the cached record, seeding it from the defaults on a miss.
// When Redis is unreachable the defaults are used.
func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	raw, err := s.Client.Get(ctx, SettingsKey).Bytes()
	if err == redis.Nil {
		if err := s.Save(ctx, s.Defaults); err != nil {
			s.Logger.Warn("SETTINGS", fmt.Sprintf("could not seed payment settings: %v", err))
		}
		return s.Defaults, nil
	}
	if err != nil {
		s.Logger.Warn("SETTINGS", fmt.Sprintf("redis unavailable, using default payment settings: %v", err))
		return s.Defaults, nil
	}

	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.Logger.Warn("SETTINGS", fmt.Sprintf("corrupt payment settings in cache, using defaults: %v", err))
		return s.Defaults, nil
	}
	// records cached before the timeout was part of them
	if settings.GatewayTimeout <= 0 {
		settings.GatewayTimeout = s.Defaults.GatewayTimeout
	}
	return settings, nil
}

// Save validates settings and writes them through to the cache.
func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal payment settings: %w", err)
	}
	if err := s.Client.Set(ctx, SettingsKey, raw, s.TTL).Err(); err != nil {
		return fmt.Errorf("store payment settings: %w", err)
	}
	s.Logger.Info("SETTINGS", fmt.Sprintf("payment settings saved: %v, gateway timeout %s", settings.EnabledMethods, settings.GatewayTimeout))
	return nil
}

// Invalidate drops the cached record so the next Load reseeds it.
func (s *SettingsStore) Invalidate(ctx context.Context) error {
	if err := s.Client.Del(ctx, SettingsKey).Err(); err != nil {
		return fmt.Errorf("invalidate payment settings: %w", err)
	}
	s.Logger.Info("SETTINGS", "payment settings invalidated")
	return nil
}

// SettingsFromConfig converts configured method names.
func SettingsFromConfig(methods []string, gatewayTimeout time.Duration) Settings {
	s := Settings{GatewayTimeout: gatewayTimeout}
	for _, m := range methods {
		s.EnabledMethods = append(s.EnabledMethods, models.PaymentMethod(m))
	}
	return s
}
