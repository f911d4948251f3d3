package server

import (
	"context"
	"fmt"

	"github.com/nstlabs/prepdesk/internal/catalog"
	"github.com/nstlabs/prepdesk/internal/store"
)

// contentPath is the tree prefix where admins seed the master chapter lists.
const contentPath = "content"

// newContentFetcher reads chapter lists from the admin-curated content
// subtree. The catalog service caches on top of it, so swapping this for a
// remote source later does not touch callers.
func newContentFetcher(tree store.Tree) catalog.ContentFetcher {
	return catalog.ContentFetcherFunc(func(ctx context.Context, board, classLevel, subject string) ([]catalog.Chapter, error) {
		path := fmt.Sprintf("%s/%s/%s/%s", contentPath, board, classLevel, subject)
		snap, err := tree.Get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("read content %s: %w", path, err)
		}
		if snap == nil {
			return nil, nil
		}

		obj, ok := snap.(*store.Object)
		if !ok {
			return nil, fmt.Errorf("unexpected content shape at %s", path)
		}
		chapters := make([]catalog.Chapter, 0, obj.Len())
		for _, key := range obj.Keys() {
			raw, _ := obj.Get(key)
			var ch catalog.Chapter
			if err := store.Decode(raw, &ch); err != nil {
				return nil, fmt.Errorf("decode chapter %s: %w", key, err)
			}
			if ch.ID == "" {
				ch.ID = key
			}
			chapters = append(chapters, ch)
		}
		return chapters, nil
	})
}
