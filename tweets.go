package twitter

import (
	"context"
	"fmt"
	"strings"
)

// GetTweets returns a lazy iterator over username's timeline, newest first.
// The username is resolved to a user id on the first pull. limit <= 0 means
// no limit.
func (c *Client) GetTweets(username string, limit int) *TweetIterator {
	var userID string
	return Paginate(func(ctx context.Context, cursor string) (*RawPage, error) {
		if userID == "" {
			id, err := c.GetUserIDByScreenName(ctx, username)
			if err != nil {
				return nil, err
			}
			userID = id
		}
		return c.fetchPage(ctx, opUserTweets, userTweetsVariables(userID, c.pageCount(0), cursor))
	}, limit)
}

// GetTweetsByUserID is GetTweets for an already-resolved user id.
func (c *Client) GetTweetsByUserID(userID string, limit int) *TweetIterator {
	return Paginate(func(ctx context.Context, cursor string) (*RawPage, error) {
		return c.fetchPage(ctx, opUserTweets, userTweetsVariables(userID, c.pageCount(0), cursor))
	}, limit)
}

// FetchTweets fetches one page of a user timeline starting at cursor.
func (c *Client) FetchTweets(ctx context.Context, userID string, limit int, cursor string) (*TweetPage, error) {
	page, err := c.fetchPage(ctx, opUserTweets, userTweetsVariables(userID, c.pageCount(limit), cursor))
	if err != nil {
		return nil, err
	}
	return normalizePage(page)
}

// FetchListTweets fetches one page of a list timeline starting at cursor.
func (c *Client) FetchListTweets(ctx context.Context, listID string, limit int, cursor string) (*TweetPage, error) {
	page, err := c.fetchPage(ctx, opListTweets, listVariables(listID, c.pageCount(limit), cursor))
	if err != nil {
		return nil, err
	}
	return normalizePage(page)
}

// GetListTweets returns a lazy iterator over a list timeline.
func (c *Client) GetListTweets(listID string, limit int) *TweetIterator {
	return Paginate(func(ctx context.Context, cursor string) (*RawPage, error) {
		return c.fetchPage(ctx, opListTweets, listVariables(listID, c.pageCount(0), cursor))
	}, limit)
}

// SearchTweets returns a lazy iterator over the latest tweets matching query.
func (c *Client) SearchTweets(query string, limit int) *TweetIterator {
	query = strings.TrimSpace(query)
	if query == "" {
		return errIterator(fmt.Errorf("%s: empty query", opSearchTimeline))
	}
	return Paginate(func(ctx context.Context, cursor string) (*RawPage, error) {
		return c.fetchPage(ctx, opSearchTimeline, searchVariables(query, c.pageCount(0), cursor))
	}, limit)
}

// GetTweet fetches a single tweet with its conversation context. Reply
// parents found in the conversation are linked, and a self-thread the tweet
// belongs to is assembled into Thread. It returns nil, nil when the
// conversation does not contain the tweet.
func (c *Client) GetTweet(ctx context.Context, id string) (*Tweet, error) {
	page, err := c.fetchPage(ctx, opTweetDetail, tweetDetailVariables(id))
	if err != nil {
		return nil, err
	}
	conversation, err := normalizeAll(page.Tweets)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", opTweetDetail, id, err)
	}
	linkReplies(conversation)

	var focal *Tweet
	for _, t := range conversation {
		if t.ID == id {
			focal = t
			break
		}
	}
	if focal == nil {
		return nil, nil
	}
	if threadCandidate(focal, conversation) {
		if _, err := AssembleThread(focal, conversation, c.cfg.ThreadLimit); err != nil {
			return nil, err
		}
	}
	return focal, nil
}

// GetTweetWhere returns the first tweet of seq matching m, or nil, nil.
func (c *Client) GetTweetWhere(ctx context.Context, seq TweetSequence, m Matcher) (*Tweet, error) {
	return FindFirst(ctx, seq, m)
}

// GetTweetsWhere returns every tweet of seq matching m.
func (c *Client) GetTweetsWhere(ctx context.Context, seq TweetSequence, m Matcher) ([]*Tweet, error) {
	return FindAll(ctx, seq, m)
}

// GetLatestTweet returns username's most recent tweet that is not pinned,
// skipping retweets unless includeRetweets is set. Only the first
// LatestScanLimit timeline tweets are inspected; nil, nil means none qualified.
func (c *Client) GetLatestTweet(ctx context.Context, username string, includeRetweets bool) (*Tweet, error) {
	return Latest(ctx, c.GetTweets(username, c.cfg.LatestScanLimit), includeRetweets)
}

// normalizePage normalizes a fetched page, dropping duplicate ids.
func normalizePage(page *RawPage) (*TweetPage, error) {
	tweets, err := normalizeAll(page.Tweets)
	if err != nil {
		return nil, err
	}
	return &TweetPage{Tweets: tweets, Next: page.Next}, nil
}

// normalizeAll normalizes raws in order, keeping the first occurrence of
// each id. The first malformed tweet aborts.
func normalizeAll(raws []RawTweet) ([]*Tweet, error) {
	out := make([]*Tweet, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		t, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func userTweetsVariables(userID string, count int, cursor string) map[string]any {
	v := map[string]any{
		"userId":                                 userID,
		"count":                                  count,
		"includePromotedContent":                 false,
		"withQuickPromoteEligibilityTweetFields": true,
		"withVoice":                              true,
		"withV2Timeline":                         true,
	}
	if cursor != "" {
		v["cursor"] = cursor
	}
	return v
}

func listVariables(listID string, count int, cursor string) map[string]any {
	v := map[string]any{"listId": listID, "count": count}
	if cursor != "" {
		v["cursor"] = cursor
	}
	return v
}

func searchVariables(query string, count int, cursor string) map[string]any {
	v := map[string]any{
		"rawQuery":    query,
		"count":       count,
		"querySource": "typed_query",
		"product":     "Latest",
	}
	if cursor != "" {
		v["cursor"] = cursor
	}
	return v
}

func tweetDetailVariables(id string) map[string]any {
	return map[string]any{
		"focalTweetId":                           id,
		"with_rux_injections":                    false,
		"includePromotedContent":                 true,
		"withCommunity":                          true,
		"withQuickPromoteEligibilityTweetFields": true,
		"withBirdwatchNotes":                     true,
		"withVoice":                              true,
		"withV2Timeline":                         true,
	}
}
