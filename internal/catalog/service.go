package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstlabs/prepdesk/internal/store"
)

// syllabusPath is the tree prefix caching fetched chapter lists.
const syllabusPath = "syllabus"

// cacheTTL is how long a cached chapter list stays fresh. Syllabi change
// rarely; a day keeps upstream traffic negligible without admins noticing
// staleness.
const cacheTTL = 24 * time.Hour

// cacheEntry is the cached document for one subject.
type cacheEntry struct {
	Chapters  []Chapter `json:"chapters"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Service serves chapter lists through a tree-backed cache in front of the
// upstream content source.
type Service struct {
	tree    store.Tree
	fetcher ContentFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the syllabus service.
func NewService(tree store.Tree, fetcher ContentFetcher, opts ...Option) *Service {
	s := &Service{
		tree:    tree,
		fetcher: fetcher,
		logger:  slog.Default().With("service", "catalog"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chapters returns the chapter list for a subject, from cache when fresh.
// A stale cache is still served if the upstream fetch fails.
func (s *Service) Chapters(ctx context.Context, board, classLevel, subject string) ([]Chapter, error) {
	path := fmt.Sprintf("%s/%s/%s/%s", syllabusPath, board, classLevel, subject)

	var cached cacheEntry
	haveCache := false
	if snap, err := s.tree.Get(ctx, path); err == nil && snap != nil {
		if err := store.Decode(snap, &cached); err == nil {
			haveCache = true
		}
	}
	if haveCache && s.now().Sub(cached.FetchedAt) < cacheTTL {
		return cached.Chapters, nil
	}

	chapters, err := s.fetcher.FetchChapters(ctx, board, classLevel, subject)
	if err != nil {
		if haveCache {
			s.logger.Warn("Upstream fetch failed, serving stale syllabus",
				"board", board, "class", classLevel, "subject", subject, "error", err)
			return cached.Chapters, nil
		}
		return nil, fmt.Errorf("fetch chapters: %w", err)
	}

	entry := cacheEntry{Chapters: chapters, FetchedAt: s.now()}
	if err := s.tree.Set(ctx, path, entry); err != nil {
		s.logger.Warn("Failed to cache syllabus", "path", path, "error", err)
	}
	return chapters, nil
}
