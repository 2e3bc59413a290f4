package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, time.Second, opts.ScrollDelay)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
}

func TestUnavailable(t *testing.T) {
	var s Scroller = Unavailable{}

	_, err := s.ScrollTexts(context.Background(), "https://resi.store/", "p", 0)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Unavailable{Reason: errors.New("no chromium")}.WaitText(context.Background(), "https://resi.store/", "#store-status", "Loading...")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no chromium")
}

func TestTrimTexts(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, trimTexts([]string{" a ", "", "\n", "b"}))
	assert.NotNil(t, trimTexts(nil))
}

func TestSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), 0))
}
