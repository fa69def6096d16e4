package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Settings{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)

	calls := 0
	err := b.Do(func() error {
		calls++
		return nil
	})
	assert.True(t, IsOpen(err))
	assert.Equal(t, 0, calls, "guarded call must not run while open")
	assert.Equal(t, "open", b.State())
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := New(Settings{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	boom := errors.New("boom")

	_ = b.Do(func() error { return boom })
	assert.NoError(t, b.Do(func() error { return nil }))
	_ = b.Do(func() error { return boom })

	assert.Equal(t, "closed", b.State())
}

func TestIsOpen_PlainError(t *testing.T) {
	assert.False(t, IsOpen(errors.New("other")))
	assert.False(t, IsOpen(nil))
}
