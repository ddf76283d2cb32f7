package twitter

import (
	"maps"

	stealth "github.com/anatolykoptev/go-stealth"
)

// defaultUserAgent is used when an account carries no user agent and for guest requests.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// baseHeaders are sent with every API request.
func baseHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return map[string]string{
		"authorization":             "Bearer " + BearerToken,
		"content-type":              "application/json",
		"x-twitter-active-user":     "yes",
		"x-twitter-client-language": "en",
		"user-agent":                userAgent,
		"accept":                    "*/*",
		"accept-language":           "en-US,en;q=0.9",
		"referer":                   "https://twitter.com/",
		"origin":                    "https://twitter.com",
	}
}

// accountHeaders authenticates a GraphQL request as a logged-in account.
func accountHeaders(authToken, ct0, userAgent string) map[string]string {
	h := baseHeaders(userAgent)
	h["x-csrf-token"] = ct0
	h["x-twitter-auth-type"] = "OAuth2Session"
	h["cookie"] = "auth_token=" + authToken + "; ct0=" + ct0
	h["accept-encoding"] = "gzip, deflate, br"
	h["sec-fetch-dest"] = "empty"
	h["sec-fetch-mode"] = "cors"
	h["sec-fetch-site"] = "same-origin"
	maps.Copy(h, stealth.ClientHintsHeaders(h["user-agent"]))
	return h
}

// guestHeaders authenticates a request with a guest token only.
func guestHeaders(guestToken string) map[string]string {
	h := baseHeaders("")
	h["x-guest-token"] = guestToken
	h["accept-encoding"] = "gzip, deflate, br"
	return h
}

// loginFlowHeaders are used by the onboarding task API during login.
func loginFlowHeaders(guestToken string) map[string]string {
	h := baseHeaders("")
	h["x-guest-token"] = guestToken
	return h
}

// headerOrder keeps header order consistent with the TLS fingerprint.
var headerOrder = []string{
	"authorization",
	"content-type",
	"x-csrf-token",
	"x-guest-token",
	"x-twitter-auth-type",
	"x-twitter-active-user",
	"x-twitter-client-language",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"sec-fetch-dest",
	"sec-fetch-mode",
	"sec-fetch-site",
	"cookie",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
	"referer",
	"origin",
}
