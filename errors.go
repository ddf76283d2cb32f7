package twitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNoMoreTweets is returned by TweetIterator.Next once the timeline is exhausted.
var ErrNoMoreTweets = errors.New("twitter: no more tweets")

// ErrUserNotFound is returned when a username resolves to no account.
var ErrUserNotFound = errors.New("twitter: user not found")

// DecodeError reports a response page whose shape could not be recognized.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode timeline: %s: %v", e.Reason, e.Err)
	}
	return "decode timeline: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MalformedTweetError reports a raw tweet missing its identity fields.
// Err is set when the entry did not decode at all.
type MalformedTweetError struct {
	EntryID string
	Field   string
	Err     error
}

func (e *MalformedTweetError) Error() string {
	msg := "malformed tweet"
	if e.EntryID != "" {
		msg += " " + e.EntryID
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Field, e.Err)
	}
	return msg + ": missing " + e.Field
}

func (e *MalformedTweetError) Unwrap() error { return e.Err }

// ThreadCycleError reports a conversation whose reply links loop back on themselves.
type ThreadCycleError struct {
	ConversationID string
	TweetID        string
}

func (e *ThreadCycleError) Error() string {
	return fmt.Sprintf("thread cycle in conversation %s at tweet %s", e.ConversationID, e.TweetID)
}

// TransportError wraps a failure of the transport collaborator for one operation.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// errorClass categorizes Twitter API error responses for targeted handling.
type errorClass int

const (
	errNone          errorClass = iota
	errBanned                   // 88: rate limit abuse
	errSuspended                // 64: account suspended
	errLocked                   // 326: account locked (captcha needed)
	errCSRF                     // 353: csrf token mismatch
	errAuthExpired              // 32: could not authenticate
	errBlocked                  // 161: blocked from performing action
	errNotAuthorized            // 179, 219: not authorized
	errInternal                 // 131: Twitter internal error
)

var errorCodes = map[int]errorClass{
	88:  errBanned,
	64:  errSuspended,
	326: errLocked,
	353: errCSRF,
	32:  errAuthExpired,
	161: errBlocked,
	179: errNotAuthorized,
	219: errNotAuthorized,
	131: errInternal,
}

// classifyError inspects a response body for known Twitter error codes.
// The first recognized code wins.
func classifyError(body []byte) errorClass {
	var errResp struct {
		Errors []struct {
			Code int `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil {
		return errNone
	}
	for _, e := range errResp.Errors {
		if class, ok := errorCodes[e.Code]; ok {
			return class
		}
	}
	return errNone
}

func (c errorClass) String() string {
	switch c {
	case errBanned:
		return "banned"
	case errSuspended:
		return "suspended"
	case errLocked:
		return "locked"
	case errCSRF:
		return "csrf"
	case errAuthExpired:
		return "auth_expired"
	case errBlocked:
		return "blocked"
	case errNotAuthorized:
		return "not_authorized"
	case errInternal:
		return "internal"
	}
	return "none"
}

// parseRateLimitReset parses the X-Rate-Limit-Reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}
