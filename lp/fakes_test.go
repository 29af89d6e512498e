package lp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/onnwee/lpbot/spotifyapi"
)

const (
	testBotID    snowflake.ID = 1
	testChannel  snowflake.ID = 917773144620670976
	otherChannel snowflake.ID = 917773144620670977
	testRole     snowflake.ID = 931328237441806356
	testAuthor   snowflake.ID = 42
)

const testAuthorTag = "listener"

var testColumns = Columns{
	Base:     []string{"message_id", "created_at", "issuer_id", "issuer_name", "issuer_nickname", "source_url"},
	Album:    []string{"artists", "album_name"},
	Playlist: []string{"artists", "playlist_owner", "playlist_name"},
}

type sentReply struct {
	To   snowflake.ID
	Text string
}

type fakeChat struct {
	replies  []sentReply
	history  map[snowflake.ID][]Message
	members  map[string]Member
	histErr  error
	lookups  []string
	historyN []int
}

func (c *fakeChat) Reply(_ context.Context, to Message, text string) error {
	c.replies = append(c.replies, sentReply{To: to.ID, Text: text})
	return nil
}

func (c *fakeChat) History(_ context.Context, channelID snowflake.ID, limit int) ([]Message, error) {
	c.historyN = append(c.historyN, limit)
	if c.histErr != nil {
		return nil, c.histErr
	}
	msgs := c.history[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (c *fakeChat) FindMember(_ context.Context, query string) (Member, error) {
	c.lookups = append(c.lookups, query)
	if m, ok := c.members[strings.ToLower(query)]; ok {
		return m, nil
	}
	return Member{}, ErrMemberNotFound
}

type storedRow struct {
	columns []string
	values  []any
}

type fakeStore struct {
	rows        map[int64]storedRow
	order       []int64
	existsCalls int
	inserts     int
	deletes     []int64
	issuerCalls int
	insertErr   error
	existsErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]storedRow)}
}

func (s *fakeStore) Exists(_ context.Context, id int64) (bool, error) {
	s.existsCalls++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.rows[id]
	return ok, nil
}

func (s *fakeStore) Insert(_ context.Context, columns []string, values []any) error {
	if len(columns) != len(values) {
		return ErrFieldCountMismatch
	}
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts++
	id := values[0].(int64)
	if _, ok := s.rows[id]; ok {
		return ErrDuplicate
	}
	s.rows[id] = storedRow{columns: columns, values: values}
	s.order = append(s.order, id)
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.deletes = append(s.deletes, id)
	delete(s.rows, id)
	return nil
}

func (s *fakeStore) IssuerArtists(_ context.Context, issuerID int64) ([][]string, error) {
	s.issuerCalls++
	var out [][]string
	for _, id := range s.order {
		row, ok := s.rows[id]
		if !ok {
			continue
		}
		if row.values[2].(int64) != issuerID {
			continue
		}
		out = append(out, row.values[6].([]string))
	}
	return out, nil
}

// hangingStore is a fakeStore whose Exists and Insert wait for their context
// to end, like a stalled database connection.
type hangingStore struct {
	*fakeStore
}

func (s hangingStore) Exists(ctx context.Context, _ int64) (bool, error) {
	s.existsCalls++
	<-ctx.Done()
	return false, ctx.Err()
}

func (s hangingStore) Insert(ctx context.Context, _ []string, _ []any) error {
	<-ctx.Done()
	return ctx.Err()
}

// value returns the stored value of column for the row keyed by id.
func (s *fakeStore) value(id snowflake.ID, column string) any {
	row, ok := s.rows[int64(id)]
	if !ok {
		return nil
	}
	for i, c := range row.columns {
		if c == column {
			return row.values[i]
		}
	}
	return nil
}

type fakeSource struct {
	albums    map[string]*spotifyapi.Album
	playlists map[string]*spotifyapi.Playlist
	err       error
	calls     int
}

func (f *fakeSource) Album(_ context.Context, rawURL string) (*spotifyapi.Album, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.albums[rawURL]; ok {
		return a, nil
	}
	return nil, errors.New("spotify request failed: 404 Not Found")
}

func (f *fakeSource) Playlist(_ context.Context, rawURL string) (*spotifyapi.Playlist, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.playlists[rawURL]; ok {
		return p, nil
	}
	return nil, errors.New("spotify request failed: 404 Not Found")
}

func artists(names ...string) []spotifyapi.Artist {
	out := make([]spotifyapi.Artist, 0, len(names))
	for _, n := range names {
		out = append(out, spotifyapi.Artist{Name: n})
	}
	return out
}

type harness struct {
	session *Session
	chat    *fakeChat
	store   *fakeStore
	source  *fakeSource
}

func newHarness() *harness {
	h := &harness{
		chat: &fakeChat{
			history: make(map[snowflake.ID][]Message),
			members: make(map[string]Member),
		},
		store: newFakeStore(),
		source: &fakeSource{
			albums:    make(map[string]*spotifyapi.Album),
			playlists: make(map[string]*spotifyapi.Playlist),
		},
	}
	h.session = NewSession(h.chat, h.store, &Resolver{Source: h.source, Timeout: time.Second}, Options{
		BotID:   testBotID,
		Watch:   Watch{Channels: []snowflake.ID{testChannel, otherChannel}, Roles: []snowflake.ID{testRole}},
		Columns: testColumns,
	})
	return h
}

// post builds a role-mentioning message in the watched channel.
func post(id snowflake.ID, content string) Message {
	return Message{
		ID:           id,
		ChannelID:    testChannel,
		AuthorID:     testAuthor,
		AuthorName:   testAuthorTag,
		AuthorNick:   "Listener",
		Content:      content,
		RoleMentions: []snowflake.ID{testRole},
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// commandMsg builds a prefixed message in the watched channel.
func commandMsg(id snowflake.ID, content string) Message {
	m := post(id, content)
	m.RoleMentions = nil
	return m
}
