package twitter

import (
	"context"
	"errors"
)

// TweetSequence is a pull-based stream of tweets. TweetIterator implements it.
type TweetSequence interface {
	Next(ctx context.Context) (*Tweet, error)
}

// Matcher decides whether a tweet satisfies a query.
type Matcher interface {
	Match(t *Tweet) bool
}

// Predicate adapts a plain function to Matcher.
type Predicate func(t *Tweet) bool

// Match implements Matcher.
func (p Predicate) Match(t *Tweet) bool { return p(t) }

// TweetQuery matches tweets whose fields equal every non-nil field of the query.
// The zero TweetQuery matches everything.
type TweetQuery struct {
	ID             *string
	UserID         *string
	Username       *string
	ConversationID *string

	IsQuoted         *bool
	IsRetweet        *bool
	IsReply          *bool
	IsPin            *bool
	IsSelfThread     *bool
	SensitiveContent *bool
}

// Match implements Matcher.
func (q TweetQuery) Match(t *Tweet) bool {
	return eq(q.ID, t.ID) &&
		eq(q.UserID, t.UserID) &&
		eq(q.Username, t.Username) &&
		eq(q.ConversationID, t.ConversationID) &&
		eq(q.IsQuoted, t.IsQuoted) &&
		eq(q.IsRetweet, t.IsRetweet) &&
		eq(q.IsReply, t.IsReply) &&
		eq(q.IsPin, t.IsPin) &&
		eq(q.IsSelfThread, t.IsSelfThread) &&
		eq(q.SensitiveContent, t.SensitiveContent)
}

func eq[T comparable](want *T, got T) bool {
	return want == nil || *want == got
}

// Ptr returns a pointer to v, for building TweetQuery literals.
func Ptr[T any](v T) *T { return &v }

// FindFirst pulls from seq until a tweet matches and returns it without
// pulling further. It returns nil, nil when the sequence ends without a match.
func FindFirst(ctx context.Context, seq TweetSequence, m Matcher) (*Tweet, error) {
	for {
		tw, err := seq.Next(ctx)
		if errors.Is(err, ErrNoMoreTweets) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if m.Match(tw) {
			return tw, nil
		}
	}
}

// FindAll drains seq and returns every matching tweet in stream order.
// The first error aborts the drain.
func FindAll(ctx context.Context, seq TweetSequence, m Matcher) ([]*Tweet, error) {
	out := []*Tweet{}
	for {
		tw, err := seq.Next(ctx)
		if errors.Is(err, ErrNoMoreTweets) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if m.Match(tw) {
			out = append(out, tw)
		}
	}
}

// Latest returns the first tweet of seq that is not pinned, skipping
// retweets unless includeRetweets is set.
func Latest(ctx context.Context, seq TweetSequence, includeRetweets bool) (*Tweet, error) {
	return FindFirst(ctx, seq, Predicate(func(t *Tweet) bool {
		return !t.IsPin && (includeRetweets || !t.IsRetweet)
	}))
}
