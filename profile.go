package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/buger/jsonparser"
)

// GetProfile fetches the public profile of username.
func (c *Client) GetProfile(ctx context.Context, username string) (*Profile, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, fmt.Errorf("%s: empty username", opUserByScreenName)
	}
	body, err := c.get(ctx, opUserByScreenName, map[string]any{
		"screen_name":              username,
		"withSafetyModeUserFields": true,
	})
	if err != nil {
		return nil, err
	}
	p, err := parseProfile(body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", opUserByScreenName, username, err)
	}
	c.userIDs.Add(strings.ToLower(username), p.ID)
	return p, nil
}

// GetUserIDByScreenName resolves username to its user id. Results are cached
// for UserCacheTTL.
func (c *Client) GetUserIDByScreenName(ctx context.Context, username string) (string, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if id, ok := c.userIDs.Get(key); ok {
		return id, nil
	}
	p, err := c.GetProfile(ctx, username)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// parseProfile reads the UserByScreenName response.
func parseProfile(body []byte) (*Profile, error) {
	raw, dataType, _, err := jsonparser.Get(body, "data", "user", "result")
	if err != nil || dataType != jsonparser.Object {
		if msg, err := jsonparser.GetString(body, "errors", "[0]", "message"); err == nil {
			return nil, fmt.Errorf("upstream error: %s", msg)
		}
		return nil, ErrUserNotFound
	}
	var u userResult
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, &DecodeError{Reason: "unmarshal user result", Err: err}
	}
	if u.TypeName == "UserUnavailable" {
		return nil, fmt.Errorf("user unavailable (suspended or restricted): %w", ErrUserNotFound)
	}
	if u.RestID == "" {
		return nil, ErrUserNotFound
	}

	p := &Profile{
		ID:             u.RestID,
		Username:       u.screenName(),
		Name:           u.displayName(),
		Biography:      strings.TrimSpace(u.Legacy.Description),
		Followers:      u.Legacy.FollowersCount,
		Following:      u.Legacy.FriendsCount,
		TweetCount:     u.Legacy.StatusesCount,
		ListedCount:    u.Legacy.ListedCount,
		IsVerified:     u.Legacy.Verified || u.IsBlueVerified,
		IsPrivate:      u.Legacy.Protected,
		Avatar:         firstNonEmpty(u.Legacy.ProfileImageURL, u.Avatar.ImageURL),
		PinnedTweetIDs: u.Legacy.PinnedTweetIDsStr,
	}
	if created := firstNonEmpty(u.Legacy.CreatedAt, u.Core.CreatedAt); created != "" {
		if t, err := time.Parse(twitterTimeLayout, created); err == nil {
			p.Joined = t.UTC()
		}
	}
	return p, nil
}
