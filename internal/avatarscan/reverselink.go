package avatarscan

import (
	"net/url"
	"strings"
)

// avatarURLPlaceholder is the token a guild's search template may embed.
const avatarURLPlaceholder = "{avatarUrl}"

// DefaultSearchTemplate is used when a guild has no template configured.
const DefaultSearchTemplate = "https://lens.google.com/uploadbyurl?url=" + avatarURLPlaceholder

// ReverseSearchURL expands a reverse-image-search template with the avatar
// URL. Templates without the placeholder get the avatar appended as a "url"
// query parameter instead, so a bare engine base still works.
func ReverseSearchURL(template, avatarURL string) string {
	if template == "" {
		template = DefaultSearchTemplate
	}
	escaped := url.QueryEscape(avatarURL)
	if strings.Contains(template, avatarURLPlaceholder) {
		return strings.ReplaceAll(template, avatarURLPlaceholder, escaped)
	}
	sep := "?"
	if strings.Contains(template, "?") {
		sep = "&"
	}
	return template + sep + "url=" + escaped
}
