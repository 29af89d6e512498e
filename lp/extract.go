package lp

import (
	"regexp"
	"strings"
)

var spotifyLinkPattern = regexp.MustCompile(`[^\s]+open\.spotify\.com[^\s]+`)

// Link is a music-service link found in a message.
type Link struct {
	Category Category
	URL      string
}

// Extract returns the first Spotify link in text. The category is decided
// lexically; a link that names neither an album nor a playlist comes back
// with CategoryNone.
func Extract(text string) (Link, bool) {
	match := spotifyLinkPattern.FindString(text)
	if match == "" {
		return Link{}, false
	}
	link := Link{URL: match}
	switch {
	case strings.Contains(match, "album"):
		link.Category = CategoryAlbum
	case strings.Contains(match, "playlist"):
		link.Category = CategoryPlaylist
	}
	return link, true
}
