package twitter

import "time"

// Profile represents a Twitter/X account profile.
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Biography      string    `json:"biography,omitempty"`
	Followers      int       `json:"followers"`
	Following      int       `json:"following"`
	TweetCount     int       `json:"tweet_count"`
	ListedCount    int       `json:"listed_count"`
	Joined         time.Time `json:"joined"`
	IsVerified     bool      `json:"is_verified"`
	IsPrivate      bool      `json:"is_private"`
	Avatar         string    `json:"avatar,omitempty"`
	PinnedTweetIDs []string  `json:"pinned_tweet_ids,omitempty"`
}

// Mention is a user referenced with @ in a tweet body.
type Mention struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Photo is an image attached to a tweet. AltText is nil when the author set none.
type Photo struct {
	ID      string  `json:"id"`
	URL     string  `json:"url"`
	AltText *string `json:"alt_text,omitempty"`
}

// Video is a video or animated GIF attached to a tweet.
// URL is the highest-bitrate variant, empty when upstream lists no variants.
type Video struct {
	ID      string `json:"id"`
	Preview string `json:"preview"`
	URL     string `json:"url,omitempty"`
}

// Place is the geotag attached to a tweet.
type Place struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	CountryCode string `json:"country_code,omitempty"`
}

// Tweet is the normalized form of every tweet-like upstream object.
//
// Slices are never nil after normalization. Engagement counters are nil when
// upstream omitted them; callers must not assume presence.
type Tweet struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	PermanentURL   string `json:"permanent_url"`

	Text string `json:"text"`
	HTML string `json:"html"`

	Timestamp  int64     `json:"timestamp"`
	TimeParsed time.Time `json:"time_parsed"`

	Hashtags []string  `json:"hashtags"`
	Mentions []Mention `json:"mentions"`
	URLs     []string  `json:"urls"`
	Photos   []Photo   `json:"photos"`
	Videos   []Video   `json:"videos"`
	Place    *Place    `json:"place,omitempty"`

	IsRetweet        bool `json:"is_retweet"`
	IsReply          bool `json:"is_reply"`
	IsQuoted         bool `json:"is_quoted"`
	IsPin            bool `json:"is_pin"`
	IsSelfThread     bool `json:"is_self_thread"`
	SensitiveContent bool `json:"sensitive_content"`

	QuotedStatusID    string `json:"quoted_status_id,omitempty"`
	RetweetedStatusID string `json:"retweeted_status_id,omitempty"`
	InReplyToStatusID string `json:"in_reply_to_status_id,omitempty"`

	QuotedStatus    *Tweet `json:"quoted_status,omitempty"`
	RetweetedStatus *Tweet `json:"retweeted_status,omitempty"`
	InReplyToStatus *Tweet `json:"in_reply_to_status,omitempty"`

	Thread []*Tweet `json:"thread"`

	Likes     *int `json:"likes,omitempty"`
	Replies   *int `json:"replies,omitempty"`
	Retweets  *int `json:"retweets,omitempty"`
	Views     *int `json:"views,omitempty"`
	Bookmarks *int `json:"bookmarks,omitempty"`
}

// detached returns a shallow copy that carries no thread and no reply parent,
// so it can be embedded in another tweet without forming a cycle.
func (t *Tweet) detached() *Tweet {
	c := *t
	c.Thread = []*Tweet{}
	c.InReplyToStatus = nil
	return &c
}

// TweetPage is one page of a timeline fetched without internal pagination.
// Next is empty when upstream reported no further page.
type TweetPage struct {
	Tweets []*Tweet `json:"tweets"`
	Next   string   `json:"next,omitempty"`
}
