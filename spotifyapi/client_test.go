package spotifyapi

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/lpbot/testutil"
)

func newTestClient(m *testutil.MockSpotifyServer) *Client {
	return &Client{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		BaseURL:      m.BaseURL(),
		TokenURL:     m.TokenURL(),
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestClient_Album(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockAlbum("XYZ", "Test Album", "A", "B", "A")
	c := newTestClient(m)

	a, err := c.Album(context.Background(), "https://open.spotify.com/album/XYZ?si=abc")
	if err != nil {
		t.Fatalf("Album() error = %v", err)
	}
	if a.Name != "Test Album" {
		t.Errorf("Name = %q, want Test Album", a.Name)
	}
	var names []string
	for _, artist := range a.Artists {
		names = append(names, artist.Name)
	}
	if want := []string{"A", "B", "A"}; !reflect.DeepEqual(names, want) {
		t.Errorf("artists = %v, want %v", names, want)
	}
	if m.Unauthorized.Load() != 0 {
		t.Errorf("API saw %d requests without the bearer token", m.Unauthorized.Load())
	}
}

func TestClient_TokenCached(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockAlbum("XYZ", "Test Album", "A")
	c := newTestClient(m)

	for i := 0; i < 3; i++ {
		if _, err := c.Album(context.Background(), "https://open.spotify.com/album/XYZ"); err != nil {
			t.Fatalf("Album() call %d error = %v", i, err)
		}
	}
	if got := m.TokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}
	if got := m.APICalls.Load(); got != 3 {
		t.Errorf("api called %d times, want 3 (no caching of lookups)", got)
	}
}

func TestClient_Playlist(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockPlaylist("PL1", "Road Trip", "Owner Name",
		[][]string{{"A", "B"}, nil, {"B"}},
		[][]string{{"C"}, {"A"}},
	)
	c := newTestClient(m)

	p, err := c.Playlist(context.Background(), "https://open.spotify.com/playlist/PL1")
	if err != nil {
		t.Fatalf("Playlist() error = %v", err)
	}
	if p.Name != "Road Trip" || p.Owner.DisplayName != "Owner Name" {
		t.Errorf("playlist = %q by %q", p.Name, p.Owner.DisplayName)
	}
	if len(p.Tracks) != 4 {
		t.Fatalf("tracks = %d, want 4 (null track skipped, second page followed)", len(p.Tracks))
	}
	if got := p.Tracks[2].Artists[0].Name; got != "C" {
		t.Errorf("first track of page two = %q, want C", got)
	}
}

func TestClient_RetriesRateLimitedCalls(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockAlbum("XYZ", "Test Album", "A")
	m.RateLimitOnce("/v1/albums/XYZ")
	c := newTestClient(m)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a, err := c.Album(ctx, "https://open.spotify.com/album/XYZ")
	if err != nil {
		t.Fatalf("Album() error = %v", err)
	}
	if a.Name != "Test Album" {
		t.Errorf("Name = %q, want Test Album", a.Name)
	}
	if got := m.RateLimited.Load(); got != 1 {
		t.Errorf("rate-limited responses = %d, want 1", got)
	}
	if got := m.APICalls.Load(); got != 2 {
		t.Errorf("api called %d times, want 2 (one retry)", got)
	}
}

func TestClient_RateLimitRespectsContext(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	m.MockAlbum("XYZ", "Test Album", "A")
	m.RateLimitOnce("/v1/albums/XYZ")
	c := newTestClient(m)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := c.Album(ctx, "https://open.spotify.com/album/XYZ"); err == nil {
		t.Fatal("expected an error when the deadline ends before the retry")
	}
}

func TestClient_Errors(t *testing.T) {
	m := testutil.NewMockSpotifyServer(t)
	c := newTestClient(m)

	tests := []struct {
		name        string
		call        func() error
		errContains string
		wantInvalid bool
	}{
		{
			name: "album not found",
			call: func() error {
				_, err := c.Album(context.Background(), "https://open.spotify.com/album/missing")
				return err
			},
			errContains: "not found",
		},
		{
			name: "playlist link passed to Album",
			call: func() error {
				_, err := c.Album(context.Background(), "https://open.spotify.com/playlist/PL1")
				return err
			},
			wantInvalid: true,
		},
		{
			name: "album link passed to Playlist",
			call: func() error {
				_, err := c.Playlist(context.Background(), "https://open.spotify.com/album/XYZ")
				return err
			},
			wantInvalid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantInvalid && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("error = %v, want ErrInvalidURL", err)
			}
			if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    Ref
		wantErr bool
	}{
		{raw: "https://open.spotify.com/album/XYZ", want: Ref{Kind: KindAlbum, ID: "XYZ"}},
		{raw: "https://open.spotify.com/album/XYZ?si=123", want: Ref{Kind: KindAlbum, ID: "XYZ"}},
		{raw: "https://open.spotify.com/intl-de/playlist/PL1", want: Ref{Kind: KindPlaylist, ID: "PL1"}},
		{raw: "https://open.spotify.com/embed/playlist/PL1/", want: Ref{Kind: KindPlaylist, ID: "PL1"}},
		{raw: "<https://open.spotify.com/album/XYZ>", want: Ref{Kind: KindAlbum, ID: "XYZ"}},
		{raw: "(https://open.spotify.com/album/XYZ).", want: Ref{Kind: KindAlbum, ID: "XYZ"}},
		{raw: "(https://open.spotify.com/album/XYZ?si=abc)", want: Ref{Kind: KindAlbum, ID: "XYZ"}},
		{raw: "trip](https://open.spotify.com/playlist/PL1)", want: Ref{Kind: KindPlaylist, ID: "PL1"}},
		{raw: "https://open.spotify.com/playlist/PL1!", want: Ref{Kind: KindPlaylist, ID: "PL1"}},
		{raw: "**https://open.spotify.com/album/XYZ**", want: Ref{Kind: KindAlbum, ID: "XYZ"}},
		{raw: "<open.spotify.com/album/XYZ>", want: Ref{Kind: KindAlbum, ID: "XYZ"}},
		{raw: "https://open.spotify.com/track/T1", wantErr: true},
		{raw: "<https://open.spotify.com/track/T1>", wantErr: true},
		{raw: "https://open.spotify.com/album", wantErr: true},
		{raw: "https://example.com/album/XYZ", wantErr: true},
		{raw: "://bad", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("ParseURL(%q) error = %v, want ErrInvalidURL", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURL(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseURL(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}
