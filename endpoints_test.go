package twitter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestURL(t *testing.T) {
	raw, err := requestURL(opTweetDetail, tweetDetailVariables("123"))
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "x.com", u.Host)
	assert.Equal(t, "/i/api/graphql/"+Endpoints[opTweetDetail].ID+"/TweetDetail", u.Path)
	assert.Contains(t, u.Query().Get("features"), "view_counts_everywhere_api_enabled")
	assert.Contains(t, u.Query().Get("fieldToggles"), "withArticleRichContentState")

	vars := variablesFromURL(raw)
	assert.Equal(t, "123", vars["focalTweetId"])
	assert.Equal(t, true, vars["withV2Timeline"])
}

func TestRequestURL_NoFieldToggles(t *testing.T) {
	raw, err := requestURL(opUserTweets, userTweetsVariables("1", 20, ""))
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.False(t, u.Query().Has("fieldToggles"))
}

func TestRequestURL_UnknownOperation(t *testing.T) {
	_, err := requestURL("Followers", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")
}

func TestEndpoints_Complete(t *testing.T) {
	for _, op := range []string{opUserByScreenName, opUserTweets, opTweetDetail, opListTweets, opSearchTimeline} {
		ep, ok := Endpoints[op]
		require.True(t, ok, op)
		assert.Equal(t, op, ep.Name)
		assert.NotEmpty(t, ep.ID)
		assert.NotEmpty(t, ep.Features)
	}
}

func TestRequiresAuth(t *testing.T) {
	assert.True(t, requiresAuth(opSearchTimeline))
	assert.False(t, requiresAuth(opUserTweets))
	assert.False(t, requiresAuth(opTweetDetail))
}
