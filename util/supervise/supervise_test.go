package supervise

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thejerf/suture/v4"
)

func TestSanitizeError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	assert.NoError(t, SanitizeError(ctx, nil))

	plain := errors.New("listener died")
	assert.Equal(t, plain, SanitizeError(ctx, plain))

	// A stray context error from a dial must not stop the service for good
	stray := fmt.Errorf("dialing: %w", context.DeadlineExceeded)
	err := SanitizeError(ctx, stray)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualError(t, err, stray.Error())

	cancel()
	assert.ErrorIs(t, SanitizeError(ctx, stray), context.Canceled)
}

func TestSanitizeKeepsSutureSignals(t *testing.T) {
	err := SanitizeError(context.Background(), errors.Join(context.Canceled, suture.ErrDoNotRestart))
	assert.ErrorIs(t, err, suture.ErrDoNotRestart)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestServiceFunc(t *testing.T) {
	called := false
	s := NewServiceFunc("probe", func(context.Context) error {
		called = true
		return nil
	})
	assert.Equal(t, "probe", s.String())
	assert.NoError(t, s.Serve(context.Background()))
	assert.True(t, called)
}
