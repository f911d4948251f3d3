package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstlabs/prepdesk/internal/store"
)

// countingFetcher tracks upstream calls and can be told to fail.
type countingFetcher struct {
	calls    int
	fail     error
	chapters []Chapter
}

func (f *countingFetcher) FetchChapters(ctx context.Context, board, classLevel, subject string) ([]Chapter, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.chapters, nil
}

func TestService_CachesChapters(t *testing.T) {
	fetcher := &countingFetcher{chapters: []Chapter{{ID: "c1", Name: "Motion"}}}
	svc := NewService(store.NewMemoryTree(), fetcher)
	ctx := context.Background()

	first, err := svc.Chapters(ctx, "CBSE", "10", "physics")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "Motion", first[0].Name)

	second, err := svc.Chapters(ctx, "CBSE", "10", "physics")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls, "second read must come from cache")
}

func TestService_ExpiredCacheRefetches(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	fetcher := &countingFetcher{chapters: []Chapter{{ID: "c1", Name: "Motion"}}}
	svc := NewService(store.NewMemoryTree(), fetcher, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := svc.Chapters(ctx, "CBSE", "10", "physics")
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	_, err = svc.Chapters(ctx, "CBSE", "10", "physics")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestService_ServesStaleCacheWhenUpstreamFails(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	fetcher := &countingFetcher{chapters: []Chapter{{ID: "c1", Name: "Motion"}}}
	svc := NewService(store.NewMemoryTree(), fetcher, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := svc.Chapters(ctx, "CBSE", "10", "physics")
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	fetcher.fail = errors.New("upstream down")

	chapters, err := svc.Chapters(ctx, "CBSE", "10", "physics")
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "Motion", chapters[0].Name)
}

func TestService_UpstreamFailureWithoutCache(t *testing.T) {
	fetcher := &countingFetcher{fail: errors.New("upstream down")}
	svc := NewService(store.NewMemoryTree(), fetcher)

	_, err := svc.Chapters(context.Background(), "CBSE", "10", "physics")
	assert.Error(t, err)
}

func TestAssetStore_RoundTrip(t *testing.T) {
	assets := NewAssetStore(afero.NewMemMapFs())
	ctx := context.Background()

	n, err := assets.Save(ctx, "physics/ch1/notes.pdf", strings.NewReader("notes content"))
	require.NoError(t, err)
	assert.EqualValues(t, len("notes content"), n)

	reader, err := assets.Get(ctx, "physics/ch1/notes.pdf")
	require.NoError(t, err)
	defer reader.Close()

	buf := make([]byte, 64)
	read, _ := reader.Read(buf)
	assert.Equal(t, "notes content", string(buf[:read]))

	require.NoError(t, assets.Delete(ctx, "physics/ch1/notes.pdf"))
	_, err = assets.Get(ctx, "physics/ch1/notes.pdf")
	assert.Error(t, err)
}
