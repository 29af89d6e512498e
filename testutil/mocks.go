package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// MockToken is the access token handed out by MockSpotifyServer.
const MockToken = "test-token"

// MockSpotifyServer mocks the Spotify token endpoint and Web API. Token
// requests go to /api/token and API calls to /v1/...
type MockSpotifyServer struct {
	*httptest.Server
	Handlers     map[string]http.HandlerFunc
	TokenCalls   atomic.Int32
	APICalls     atomic.Int32
	Unauthorized atomic.Int32
	RateLimited  atomic.Int32
}

const playlistPageSize = 100

// NewMockSpotifyServer creates a new mock Spotify server.
func NewMockSpotifyServer(t *testing.T) *MockSpotifyServer {
	t.Helper()
	m := &MockSpotifyServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			m.TokenCalls.Add(1)
			writeJSON(w, map[string]interface{}{
				"access_token": MockToken,
				"token_type":   "bearer",
				"expires_in":   3600,
			})
			return
		}
		m.APICalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+MockToken {
			m.Unauthorized.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":404,"message":"Resource not found"}}`))
	}))
	t.Cleanup(m.Close)
	return m
}

// TokenURL is the token endpoint to configure on the client.
func (m *MockSpotifyServer) TokenURL() string { return m.URL + "/api/token" }

// BaseURL is the API base to configure on the client.
func (m *MockSpotifyServer) BaseURL() string { return m.URL + "/v1" }

// MockAlbum adds a handler for /v1/albums/{id}.
func (m *MockSpotifyServer) MockAlbum(id, name string, artists ...string) {
	m.Handlers["/v1/albums/"+id] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":      id,
			"name":    name,
			"artists": artistList(artists),
		})
	}
}

// MockPlaylist adds handlers for /v1/playlists/{id} and its items. Each
// element of pages is one page of tracks, each track given as its artist
// names. A nil track stands for a local file, which lookups skip.
func (m *MockSpotifyServer) MockPlaylist(id, name, owner string, pages ...[][]string) {
	page := func(i int) map[string]interface{} {
		items := []map[string]interface{}{}
		if i < len(pages) {
			for n, names := range pages[i] {
				local := names == nil
				if local {
					names = []string{"Local Artist"}
				}
				items = append(items, map[string]interface{}{
					"is_local": local,
					"track": map[string]interface{}{
						"type":    "track",
						"track":   true,
						"episode": false,
						"id":      fmt.Sprintf("%s-%d-%d", id, i, n),
						"name":    fmt.Sprintf("track %d", n),
						"artists": artistList(names),
					},
				})
			}
		}
		var next interface{}
		if i+1 < len(pages) {
			next = fmt.Sprintf("%s/v1/playlists/%s/tracks?offset=%d&limit=%d", m.URL, id, (i+1)*playlistPageSize, playlistPageSize)
		}
		return map[string]interface{}{
			"items":  items,
			"next":   next,
			"offset": i * playlistPageSize,
			"limit":  playlistPageSize,
		}
	}

	m.Handlers["/v1/playlists/"+id] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":    id,
			"name":  name,
			"owner": map[string]string{"id": strings.ToLower(owner), "display_name": owner},
		})
	}
	m.Handlers["/v1/playlists/"+id+"/tracks"] = func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		writeJSON(w, page(offset/playlistPageSize))
	}
}

// RateLimitOnce makes the first request to path answer 429 with a
// Retry-After of one second; later requests reach the registered handler.
func (m *MockSpotifyServer) RateLimitOnce(path string) {
	next := m.Handlers[path]
	var hit atomic.Bool
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		if hit.CompareAndSwap(false, true) {
			m.RateLimited.Add(1)
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func artistList(names []string) []map[string]string {
	out := make([]map[string]string, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]string{"name": n})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}
