package scraper

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/storetest"
)

func listingStore(items ...string) *storetest.Store {
	return storetest.New().AddListing("Widgets", items...)
}

func newWalker(store *storetest.Store, opts WalkerOptions) *CatalogWalker {
	return NewCatalogWalker(store, opts, metrics.New(), slog.Default())
}

func TestWalkConcatenatesPages(t *testing.T) {
	store := listingStore("A", "B", "C")
	w := newWalker(store, WalkerOptions{MaxPages: 10})

	items, err := Collect(w.Walk(context.Background(), store.CategoryURL("Widgets")))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, items)

	assert.Equal(t, 1, store.FetchCount(store.ListingURL("Widgets", 1)))
	assert.Equal(t, 1, store.FetchCount(store.ListingURL("Widgets", 2)))
	assert.Equal(t, 1, store.FetchCount(store.ListingURL("Widgets", 3)))
	assert.Equal(t, 0, store.FetchCount(store.ListingURL("Widgets", 4)))
}

func TestWalkEmptyCategory(t *testing.T) {
	store := listingStore()
	w := newWalker(store, WalkerOptions{MaxPages: 10})

	items, err := Collect(w.Walk(context.Background(), store.CategoryURL("Widgets")))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 1, store.Fetches())
}

func TestWalkPageCeiling(t *testing.T) {
	t.Run("exactly max pages", func(t *testing.T) {
		store := listingStore("A", "B", "C", "D")
		w := newWalker(store, WalkerOptions{MaxPages: 2})

		items, err := Collect(w.Walk(context.Background(), store.CategoryURL("Widgets")))
		require.NoError(t, err)
		assert.Len(t, items, 4)
	})

	t.Run("one page over", func(t *testing.T) {
		store := listingStore("A", "B", "C", "D", "E")
		w := newWalker(store, WalkerOptions{MaxPages: 2})

		_, err := Collect(w.Walk(context.Background(), store.CategoryURL("Widgets")))

		var tooLarge *CatalogTooLargeError
		require.True(t, errors.As(err, &tooLarge))
		assert.Equal(t, 3, tooLarge.Pages)
		assert.Equal(t, 0, store.FetchCount(store.ListingURL("Widgets", 4)))
	})
}

type slowFetcher struct {
	*storetest.Store
	delay time.Duration
}

func (f slowFetcher) Fetch(ctx context.Context, url string) (string, error) {
	time.Sleep(f.delay)
	return f.Store.Fetch(ctx, url)
}

func TestWalkDurationCeiling(t *testing.T) {
	store := listingStore("A", "B", "C", "D", "E")
	w := NewCatalogWalker(slowFetcher{Store: store, delay: 20 * time.Millisecond},
		WalkerOptions{MaxPages: 100, MaxDuration: 5 * time.Millisecond}, nil, slog.Default())

	var seen []string
	var walkErr error
	for item, err := range w.Walk(context.Background(), store.CategoryURL("Widgets")) {
		if err != nil {
			walkErr = err
			break
		}
		seen = append(seen, item)
	}

	var tooLarge *CatalogTooLargeError
	require.True(t, errors.As(walkErr, &tooLarge))
	assert.Equal(t, []string{"A", "B"}, seen)
	assert.Equal(t, 1, store.Fetches())
}

func TestWalkIsLazy(t *testing.T) {
	store := listingStore("A", "B", "C")
	w := newWalker(store, WalkerOptions{MaxPages: 10})

	for item, err := range w.Walk(context.Background(), store.CategoryURL("Widgets")) {
		require.NoError(t, err)
		assert.Equal(t, "A", item)
		break
	}
	assert.Equal(t, 1, store.Fetches())
}

func TestWalkRestartsFromFirstPage(t *testing.T) {
	store := listingStore("A", "B", "C")
	w := newWalker(store, WalkerOptions{MaxPages: 10})
	walk := w.Walk(context.Background(), store.CategoryURL("Widgets"))

	first, err := Collect(walk)
	require.NoError(t, err)
	second, err := Collect(walk)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.FetchCount(store.ListingURL("Widgets", 1)))
}

func TestWalkTransportFailure(t *testing.T) {
	store := listingStore("A", "B", "C")
	store.Fail(store.ListingURL("Widgets", 2), errors.New("connection reset"))
	w := newWalker(store, WalkerOptions{MaxPages: 10})

	items, err := Collect(w.Walk(context.Background(), store.CategoryURL("Widgets")))
	assert.Nil(t, items)

	var transport *TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, store.ListingURL("Widgets", 2), transport.URL)
	assert.Equal(t, 0, store.FetchCount(store.ListingURL("Widgets", 3)))
}

func TestWalkCanceled(t *testing.T) {
	store := listingStore("A")
	w := newWalker(store, WalkerOptions{MaxPages: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(w.Walk(ctx, store.CategoryURL("Widgets")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Fetches())
}

func TestPageURL(t *testing.T) {
	u, err := pageURL("https://resi.store/products/widgets/", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://resi.store/products/widgets/?page=3", u)

	u, err = pageURL("https://resi.store/products/widgets/?page=9&sort=x", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://resi.store/products/widgets/?page=1&sort=x", u)
}
