package spotifyapi

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for links that do not name a Spotify album or playlist.
var ErrInvalidURL = errors.New("invalid spotify url")

type Kind string

const (
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
)

// Ref identifies the object behind an open.spotify.com link.
type Ref struct {
	Kind Kind
	ID   string
}

const spotifyHost = "open.spotify.com"

// trailingMarkup is what chat formatting leaves after a link: closing
// brackets, sentence punctuation and markdown emphasis.
const trailingMarkup = ")]>.,;:!?'\"*_~|"

// ParseURL extracts the object kind and id from a share link such as
// https://open.spotify.com/intl-de/album/<id>?si=... . Chat wrapping like
// <link>, (link). or [label](link) is stripped first.
func ParseURL(raw string) (Ref, error) {
	u, err := url.Parse(unwrap(raw))
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Hostname(), spotifyHost) {
		return Ref{}, fmt.Errorf("%w: unexpected host %q", ErrInvalidURL, u.Host)
	}

	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for len(segs) > 0 && (strings.HasPrefix(segs[0], "intl-") || segs[0] == "embed") {
		segs = segs[1:]
	}
	if len(segs) < 2 || segs[1] == "" {
		return Ref{}, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	switch kind := Kind(segs[0]); kind {
	case KindAlbum, KindPlaylist:
		return Ref{Kind: kind, ID: segs[1]}, nil
	default:
		return Ref{}, fmt.Errorf("%w: unsupported object %q", ErrInvalidURL, segs[0])
	}
}

// unwrap cuts whatever precedes the link's scheme and the markup trailing it.
// A link written without a scheme gets https.
func unwrap(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	host := strings.Index(lower, spotifyHost)
	if host < 0 {
		return s
	}
	if scheme := strings.LastIndex(lower[:host], "http"); scheme >= 0 {
		s = s[scheme:]
	} else {
		s = "https://" + s[host:]
	}
	return strings.TrimRight(s, trailingMarkup)
}
