package lp

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/onnwee/lpbot/spotifyapi"
)

// Category determines which metadata fields a record carries.
type Category int

const (
	CategoryNone Category = iota
	CategoryAlbum
	CategoryPlaylist
)

func (c Category) String() string {
	switch c {
	case CategoryAlbum:
		return "album"
	case CategoryPlaylist:
		return "playlist"
	default:
		return "none"
	}
}

// Message is the subset of a chat message the pipeline looks at.
type Message struct {
	ID           snowflake.ID
	ChannelID    snowflake.ID
	GuildID      snowflake.ID
	AuthorID     snowflake.ID
	AuthorName   string
	AuthorNick   string
	Content      string
	RoleMentions []snowflake.ID
	CreatedAt    time.Time
}

// Member is a guild member resolved from a stats query.
type Member struct {
	ID   snowflake.ID
	Name string
}

// FieldSet is the normalized metadata for one link.
type FieldSet struct {
	Category      Category
	Artists       []string
	AlbumName     string
	PlaylistOwner string
	PlaylistName  string
}

// Record is one logged listening party.
type Record struct {
	MessageID      snowflake.ID
	CreatedAt      time.Time
	IssuerID       snowflake.ID
	IssuerName     string
	IssuerNickname string
	SourceURL      string
	Fields         FieldSet
}

// Columns names the configured table columns. Base lines up with message id,
// creation time, issuer id, issuer name, issuer nickname and source url; Album
// with artists and album name; Playlist with artists, owner and name.
type Columns struct {
	Base     []string
	Album    []string
	Playlist []string
}

func (r Record) baseValues() []any {
	return []any{
		int64(r.MessageID),
		r.CreatedAt,
		int64(r.IssuerID),
		r.IssuerName,
		r.IssuerNickname,
		r.SourceURL,
	}
}

func (r Record) categoryValues() []any {
	switch r.Fields.Category {
	case CategoryAlbum:
		return []any{r.Fields.Artists, r.Fields.AlbumName}
	case CategoryPlaylist:
		return []any{r.Fields.Artists, r.Fields.PlaylistOwner, r.Fields.PlaylistName}
	default:
		return nil
	}
}

// Assemble zips the configured columns with the record's values. The column
// list and the value list must have the same length or nothing is returned.
func Assemble(r Record, cols Columns) ([]string, []any, error) {
	var catCols []string
	switch r.Fields.Category {
	case CategoryAlbum:
		catCols = cols.Album
	case CategoryPlaylist:
		catCols = cols.Playlist
	default:
		return nil, nil, fmt.Errorf("%w: record has no category", ErrUnparseableURL)
	}

	columns := make([]string, 0, len(cols.Base)+len(catCols))
	columns = append(columns, cols.Base...)
	columns = append(columns, catCols...)

	values := append(r.baseValues(), r.categoryValues()...)
	if len(columns) != len(values) {
		return nil, nil, fmt.Errorf("%w: %d columns configured for %s, record has %d values",
			ErrFieldCountMismatch, len(columns), r.Fields.Category, len(values))
	}
	return columns, values, nil
}

// Chat is the chat platform as seen by the bot.
type Chat interface {
	Reply(ctx context.Context, to Message, text string) error
	// History returns up to limit messages from the channel, newest first.
	History(ctx context.Context, channelID snowflake.ID, limit int) ([]Message, error)
	FindMember(ctx context.Context, query string) (Member, error)
}

// Store is the persistence gateway for listening-party rows.
type Store interface {
	Exists(ctx context.Context, messageID int64) (bool, error)
	Insert(ctx context.Context, columns []string, values []any) error
	Delete(ctx context.Context, messageID int64) error
	// IssuerArtists returns the artists column of every record logged by the issuer.
	IssuerArtists(ctx context.Context, issuerID int64) ([][]string, error)
}

// MetadataSource looks links up against the music service.
type MetadataSource interface {
	Album(ctx context.Context, rawURL string) (*spotifyapi.Album, error)
	Playlist(ctx context.Context, rawURL string) (*spotifyapi.Playlist, error)
}
