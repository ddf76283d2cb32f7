package twitter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawPage decodes fixture tweets into a RawPage with the given next cursor.
func rawPage(t *testing.T, next string, tweets []fixtureTweet) *RawPage {
	t.Helper()
	page := &RawPage{Next: next}
	for _, f := range tweets {
		page.Tweets = append(page.Tweets, decodeOne(t, f))
	}
	return page
}

// pagedFetcher serves pages keyed by cursor and records the cursors requested.
type pagedFetcher struct {
	pages   map[string]*RawPage
	cursors []string
}

func (p *pagedFetcher) fetch(_ context.Context, cursor string) (*RawPage, error) {
	p.cursors = append(p.cursors, cursor)
	if page, ok := p.pages[cursor]; ok {
		return page, nil
	}
	return &RawPage{}, nil
}

func drain(t *testing.T, it *TweetIterator) []string {
	t.Helper()
	var out []string
	for tw, err := range it.All(context.Background()) {
		require.NoError(t, err)
		out = append(out, tw.ID)
	}
	return out
}

func TestPaginate_DedupesOverlappingPages(t *testing.T) {
	tweets := plainTweets(1, 5)
	f := &pagedFetcher{pages: map[string]*RawPage{
		"":   rawPage(t, "c1", tweets[0:3]),
		"c1": rawPage(t, "c2", tweets[2:5]),
	}}

	got := drain(t, Paginate(f.fetch, 0))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)
	assert.Equal(t, []string{"", "c1", "c2"}, f.cursors)
}

func TestPaginate_RespectsLimit(t *testing.T) {
	f := &pagedFetcher{pages: map[string]*RawPage{
		"":   rawPage(t, "c1", plainTweets(1, 3)),
		"c1": rawPage(t, "c2", plainTweets(4, 3)),
	}}
	it := Paginate(f.fetch, 4)

	got := drain(t, it)
	assert.Equal(t, []string{"1", "2", "3", "4"}, got)
	assert.Equal(t, 2, it.Pages())

	_, err := it.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoMoreTweets)
}

func TestPaginate_FetchesLazily(t *testing.T) {
	f := &pagedFetcher{pages: map[string]*RawPage{
		"":   rawPage(t, "c1", plainTweets(1, 2)),
		"c1": rawPage(t, "c2", plainTweets(3, 2)),
	}}
	it := Paginate(f.fetch, 0)
	ctx := context.Background()
	assert.Equal(t, 0, it.Pages())

	for _, want := range []struct {
		id    string
		pages int
	}{{"1", 1}, {"2", 1}, {"3", 2}, {"4", 2}} {
		tw, err := it.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want.id, tw.ID)
		assert.Equal(t, want.pages, it.Pages())
	}
	assert.Equal(t, "c2", it.Cursor())
}

func TestPaginate_StopsOnRepeatedCursor(t *testing.T) {
	f := &pagedFetcher{pages: map[string]*RawPage{
		"":   rawPage(t, "c1", plainTweets(1, 2)),
		"c1": rawPage(t, "c1", plainTweets(3, 2)),
	}}
	it := Paginate(f.fetch, 0)

	assert.Equal(t, []string{"1", "2", "3", "4"}, drain(t, it))
	assert.Equal(t, []string{"", "c1"}, f.cursors)
	assert.Empty(t, it.Cursor())
}

func TestPaginate_StopsOnCursorLoop(t *testing.T) {
	f := &pagedFetcher{pages: map[string]*RawPage{
		"":   rawPage(t, "a", plainTweets(1, 1)),
		"a":  rawPage(t, "b", plainTweets(2, 1)),
		"b":  rawPage(t, "a", plainTweets(3, 1)),
		"zz": rawPage(t, "", plainTweets(99, 1)),
	}}

	assert.Equal(t, []string{"1", "2", "3"}, drain(t, Paginate(f.fetch, 0)))
	assert.Equal(t, []string{"", "a", "b"}, f.cursors)
}

func TestPaginate_StopsOnEmptyPage(t *testing.T) {
	f := &pagedFetcher{pages: map[string]*RawPage{
		"":   rawPage(t, "c1", plainTweets(1, 2)),
		"c1": {Next: "c2"},
	}}

	assert.Equal(t, []string{"1", "2"}, drain(t, Paginate(f.fetch, 0)))
	assert.Equal(t, []string{"", "c1"}, f.cursors)
}

func TestPaginate_ErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	it := Paginate(func(_ context.Context, cursor string) (*RawPage, error) {
		calls++
		if cursor == "" {
			return rawPage(t, "c1", plainTweets(1, 1)), nil
		}
		return nil, boom
	}, 0)
	ctx := context.Background()

	tw, err := it.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", tw.ID)

	_, err = it.Next(ctx)
	require.ErrorIs(t, err, boom)
	_, err = it.Next(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestPaginate_MalformedTweetStopsIteration(t *testing.T) {
	good := decodeOne(t, plainTweets(1, 1)[0])
	bad := RawTweet{EntryID: "tweet-2"}
	it := Paginate(func(context.Context, string) (*RawPage, error) {
		return &RawPage{Tweets: []RawTweet{good, bad}}, nil
	}, 0)

	var got []string
	var gotErr error
	for tw, err := range it.All(context.Background()) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, tw.ID)
	}
	assert.Equal(t, []string{"1"}, got)
	var malformed *MalformedTweetError
	require.ErrorAs(t, gotErr, &malformed)
	assert.Equal(t, "tweet-2", malformed.EntryID)
}

func TestPaginate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it := Paginate(func(context.Context, string) (*RawPage, error) {
		t.Fatal("fetch must not run with a canceled context")
		return nil, nil
	}, 0)

	_, err := it.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrIterator(t *testing.T) {
	boom := errors.New("boom")
	it := errIterator(boom)
	_, err := it.Next(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, it.Pages())
}
