package twitter

import (
	"context"
	"errors"
	"iter"
	"log/slog"
)

// PageFetcher fetches one raw timeline page. An empty cursor requests the first page.
type PageFetcher func(ctx context.Context, cursor string) (*RawPage, error)

// TweetIterator lazily walks a cursor-paginated timeline. Pages are fetched
// only when the buffered page is exhausted, and each tweet is normalized when
// it is pulled. A TweetIterator is not safe for concurrent use.
type TweetIterator struct {
	fetch PageFetcher
	limit int

	cursor  string
	buf     []RawTweet
	pos     int
	seen    map[string]struct{}
	used    map[string]struct{}
	yielded int
	pages   int
	last    bool // no page follows the buffered one
	err     error
}

// Paginate returns an iterator over the tweets produced by fetch.
// limit <= 0 means no limit.
func Paginate(fetch PageFetcher, limit int) *TweetIterator {
	return &TweetIterator{
		fetch: fetch,
		limit: limit,
		seen:  make(map[string]struct{}),
		used:  make(map[string]struct{}),
	}
}

// errIterator returns an iterator that fails with err on the first pull.
func errIterator(err error) *TweetIterator {
	return &TweetIterator{err: err}
}

// Next returns the next unseen tweet, or ErrNoMoreTweets once the timeline,
// the limit or the cursor chain is exhausted. Errors are sticky: once Next
// fails it keeps returning the same error.
func (it *TweetIterator) Next(ctx context.Context) (*Tweet, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.limit > 0 && it.yielded >= it.limit {
		return nil, ErrNoMoreTweets
	}
	for {
		for it.pos < len(it.buf) {
			raw := it.buf[it.pos]
			it.pos++

			tw, err := Normalize(raw)
			if err != nil {
				it.err = err
				return nil, err
			}
			if _, dup := it.seen[tw.ID]; dup {
				continue
			}
			it.seen[tw.ID] = struct{}{}
			it.yielded++
			return tw, nil
		}
		if it.last {
			return nil, ErrNoMoreTweets
		}
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return nil, err
		}
	}
}

// fetchPage replaces the buffer with the page at the current cursor and
// advances the cursor.
func (it *TweetIterator) fetchPage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it.used[it.cursor] = struct{}{}

	page, err := it.fetch(ctx, it.cursor)
	if err != nil {
		return err
	}
	it.pages++
	if page == nil {
		page = &RawPage{}
	}
	it.buf = page.Tweets
	it.pos = 0

	_, reused := it.used[page.Next]
	switch {
	case len(page.Tweets) == 0:
		it.last = true
	case page.Next == "" || page.Next == it.cursor || reused:
		if page.Next != "" {
			slog.Debug("cursor repeated, stopping", slog.String("cursor", page.Next), slog.Int("pages", it.pages))
		}
		it.last = true
	}
	it.cursor = page.Next
	return nil
}

// All adapts the iterator to a range-over-func sequence. A terminal error
// other than ErrNoMoreTweets is yielded once as the last element.
func (it *TweetIterator) All(ctx context.Context) iter.Seq2[*Tweet, error] {
	return func(yield func(*Tweet, error) bool) {
		for {
			tw, err := it.Next(ctx)
			if errors.Is(err, ErrNoMoreTweets) {
				return
			}
			if !yield(tw, err) || err != nil {
				return
			}
		}
	}
}

// Pages reports how many pages have been fetched so far.
func (it *TweetIterator) Pages() int { return it.pages }

// Cursor returns the cursor of the next page to fetch; empty once the
// timeline is exhausted or before the first fetch.
func (it *TweetIterator) Cursor() string {
	if it.last {
		return ""
	}
	return it.cursor
}
