package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	detailed := BusinessRule(CodeInsufficientInventory, "only 2 left")

	assert.True(t, errors.Is(detailed, ErrInsufficientInventory))
	assert.False(t, errors.Is(detailed, ErrCouponExpired))

	wrapped := fmt.Errorf("purchase: %w", detailed)
	assert.True(t, errors.Is(wrapped, ErrInsufficientInventory))
}

func TestFromConvertsUnknownErrors(t *testing.T) {
	e := From(sql.ErrConnDone)
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, CodeInternal, e.Code)
	assert.True(t, errors.Is(e, sql.ErrConnDone))

	assert.Nil(t, From(nil))
	assert.Same(t, ErrTicketNotFound, From(ErrTicketNotFound))
}

func TestRetryableDefaults(t *testing.T) {
	assert.True(t, ErrStateConflict.Retryable)
	assert.False(t, ErrInsufficientInventory.Retryable)

	ext := External(CodeGatewayTimeout, "gateway timed out", true, errors.New("deadline"))
	assert.True(t, ext.Retryable)
	assert.Equal(t, KindExternal, ext.Kind)
	assert.Contains(t, ext.Error(), "gateway_timeout")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeCouponExhausted, CodeOf(fmt.Errorf("x: %w", ErrCouponExhausted)))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}
