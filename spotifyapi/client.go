// Package spotifyapi looks up albums and playlists on the Spotify Web API
// using an app (client-credentials) token. Requests go through
// github.com/zmb3/spotify/v2, which pages and retries rate-limited calls.
package spotifyapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// maxPlaylistPages bounds how many track pages a playlist lookup follows.
	maxPlaylistPages = 100
)

type Artist struct {
	ID   string
	Name string
}

type Album struct {
	ID      string
	Name    string
	Artists []Artist
}

type User struct {
	ID          string
	DisplayName string
}

type Track struct {
	ID      string
	Name    string
	Artists []Artist
}

// Playlist is a playlist with every page of its tracks flattened. Local,
// removed and podcast items are left out.
type Playlist struct {
	ID     string
	Name   string
	Owner  User
	Tracks []Track
}

// Client calls the Web API. HTTPClient, when set, is the base transport for
// both the token endpoint and API calls. Rate-limited calls are retried after
// the Retry-After delay until the caller's context ends.
type Client struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	HTTPClient   *http.Client

	once sync.Once
	api  *spotify.Client
}

func (c *Client) client() *spotify.Client {
	c.once.Do(func() {
		tokenURL := c.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		cc := &clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     tokenURL,
		}
		ctx := context.Background()
		if c.HTTPClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
		}
		c.api = spotify.New(cc.Client(ctx),
			spotify.WithBaseURL(c.baseURL()+"/"),
			spotify.WithRetry(true),
		)
	})
	return c.api
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

// Album looks up the album a link points at.
func (c *Client) Album(ctx context.Context, rawURL string) (*Album, error) {
	ref, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if ref.Kind != KindAlbum {
		return nil, fmt.Errorf("%w: %s is a %s link", ErrInvalidURL, rawURL, ref.Kind)
	}
	full, err := c.client().GetAlbum(ctx, spotify.ID(ref.ID))
	if err != nil {
		return nil, fmt.Errorf("get album %s: %w", ref.ID, err)
	}
	return &Album{
		ID:      string(full.ID),
		Name:    full.Name,
		Artists: toArtists(full.Artists),
	}, nil
}

// Playlist looks up the playlist a link points at, following track pagination.
func (c *Client) Playlist(ctx context.Context, rawURL string) (*Playlist, error) {
	ref, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if ref.Kind != KindPlaylist {
		return nil, fmt.Errorf("%w: %s is a %s link", ErrInvalidURL, rawURL, ref.Kind)
	}
	api := c.client()
	id := spotify.ID(ref.ID)

	full, err := api.GetPlaylist(ctx, id, spotify.Fields("id,name,owner(id,display_name)"))
	if err != nil {
		return nil, fmt.Errorf("get playlist %s: %w", ref.ID, err)
	}
	p := &Playlist{
		ID:    string(full.ID),
		Name:  full.Name,
		Owner: User{ID: string(full.Owner.ID), DisplayName: full.Owner.DisplayName},
	}

	page, err := api.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get playlist %s items: %w", ref.ID, err)
	}
	for pages := 1; ; pages++ {
		for _, item := range page.Items {
			t := item.Track.Track
			if item.IsLocal || t == nil {
				continue
			}
			p.Tracks = append(p.Tracks, Track{ID: string(t.ID), Name: t.Name, Artists: toArtists(t.Artists)})
		}
		if page.Next == "" {
			break
		}
		if pages >= maxPlaylistPages {
			slog.Warn("playlist has too many track pages, truncating",
				slog.String("playlist", ref.ID), slog.Int("pages", pages))
			break
		}
		// Decode the next page into fresh items so nothing carries over.
		page.Items = nil
		if err := api.NextPage(ctx, page); err != nil {
			if errors.Is(err, spotify.ErrNoMorePages) {
				break
			}
			return nil, fmt.Errorf("get playlist %s items page %d: %w", ref.ID, pages+1, err)
		}
	}
	return p, nil
}

func toArtists(in []spotify.SimpleArtist) []Artist {
	out := make([]Artist, 0, len(in))
	for _, a := range in {
		out = append(out, Artist{ID: string(a.ID), Name: a.Name})
	}
	return out
}
