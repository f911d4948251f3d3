package catalog

import "context"

// Chapter is one syllabus entry for a subject.
type Chapter struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	AssetKey string `json:"assetKey,omitempty"`
}

// ContentFetcher loads the chapter list for a subject from the upstream
// content source. Implementations own transport and format details; callers
// only see chapters.
type ContentFetcher interface {
	FetchChapters(ctx context.Context, board, classLevel, subject string) ([]Chapter, error)
}

// ContentFetcherFunc adapts a function to the ContentFetcher interface.
type ContentFetcherFunc func(ctx context.Context, board, classLevel, subject string) ([]Chapter, error)

func (f ContentFetcherFunc) FetchChapters(ctx context.Context, board, classLevel, subject string) ([]Chapter, error) {
	return f(ctx, board, classLevel, subject)
}
