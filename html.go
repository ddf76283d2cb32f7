package twitter

import (
	"regexp"
	"slices"
	"strings"
)

var (
	reHashtag  = regexp.MustCompile(`\B(#\S+\b)`)
	reCashtag  = regexp.MustCompile(`\B(\$\S+\b)`)
	reUsername = regexp.MustCompile(`\B(@\S{1,15}\b)`)
	reTcoURL   = regexp.MustCompile(`https://t\.co/[A-Za-z0-9]{10}`)
	reBreak    = regexp.MustCompile(`\r?\n`)
)

// reconstructHTML renders text, the resolved tweet body, the way the web
// client does: hashtags, cashtags and mentions become links, t.co links are
// unwrapped to their expanded target or inline media, and line breaks become <br>.
func reconstructHTML(text string, l *legacyTweet, photos []Photo, videos []Video) string {
	html := text
	html = reHashtag.ReplaceAllStringFunc(html, func(tag string) string {
		return `<a href="https://twitter.com/hashtag/` + strings.TrimPrefix(tag, "#") + `">` + tag + `</a>`
	})
	html = reCashtag.ReplaceAllStringFunc(html, func(tag string) string {
		return `<a href="https://twitter.com/search?q=%24` + strings.TrimPrefix(tag, "$") + `">` + tag + `</a>`
	})
	html = reUsername.ReplaceAllStringFunc(html, func(name string) string {
		return `<a href="https://twitter.com/` + strings.TrimPrefix(name, "@") + `">` + name + `</a>`
	})

	var inlined []string
	html = reTcoURL.ReplaceAllStringFunc(html, func(tco string) string {
		for _, u := range l.Entities.URLs {
			if u.URL == tco && u.ExpandedURL != "" {
				return `<a href="` + u.ExpandedURL + `">` + tco + `</a>`
			}
		}
		for _, m := range l.ExtendedEntities.Media {
			if m.URL == tco && m.MediaURLHTTPS != "" {
				inlined = append(inlined, m.MediaURLHTTPS)
				return `<br><a href="` + tco + `"><img src="` + m.MediaURLHTTPS + `"/></a>`
			}
		}
		return tco
	})

	for _, p := range photos {
		if !slices.Contains(inlined, p.URL) {
			html += `<br><img src="` + p.URL + `"/>`
		}
	}
	for _, v := range videos {
		if !slices.Contains(inlined, v.Preview) {
			html += `<br><img src="` + v.Preview + `"/>`
		}
	}
	return reBreak.ReplaceAllString(html, "<br>")
}
