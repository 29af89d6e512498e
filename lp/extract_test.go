package lp

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		text   string
		want   Link
		wantOK bool
	}{
		{
			text:   "lp check out https://open.spotify.com/album/XYZ tonight",
			want:   Link{Category: CategoryAlbum, URL: "https://open.spotify.com/album/XYZ"},
			wantOK: true,
		},
		{
			text:   "https://open.spotify.com/playlist/P1?si=abc",
			want:   Link{Category: CategoryPlaylist, URL: "https://open.spotify.com/playlist/P1?si=abc"},
			wantOK: true,
		},
		{
			text:   "first https://open.spotify.com/playlist/P1 then https://open.spotify.com/album/A2",
			want:   Link{Category: CategoryPlaylist, URL: "https://open.spotify.com/playlist/P1"},
			wantOK: true,
		},
		{
			text:   "https://open.spotify.com/track/T1",
			want:   Link{Category: CategoryNone, URL: "https://open.spotify.com/track/T1"},
			wantOK: true,
		},
		{text: "no link here"},
		{text: "open.spotify.com"},
		{text: "https://example.com/album/XYZ"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Extract(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Extract() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAssemble(t *testing.T) {
	rec := Record{
		MessageID:      100,
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		IssuerID:       42,
		IssuerName:     "listener",
		IssuerNickname: "Listener",
		SourceURL:      "https://open.spotify.com/album/XYZ",
		Fields:         FieldSet{Category: CategoryAlbum, Artists: []string{"A", "B"}, AlbumName: "Test Album"},
	}

	cols, vals, err := Assemble(rec, testColumns)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	wantCols := append(append([]string{}, testColumns.Base...), testColumns.Album...)
	if !reflect.DeepEqual(cols, wantCols) {
		t.Errorf("columns = %v, want %v", cols, wantCols)
	}
	wantVals := []any{int64(100), rec.CreatedAt, int64(42), "listener", "Listener", rec.SourceURL, []string{"A", "B"}, "Test Album"}
	if !reflect.DeepEqual(vals, wantVals) {
		t.Errorf("values = %v, want %v", vals, wantVals)
	}

	rec.Fields = FieldSet{Category: CategoryPlaylist, Artists: []string{"C"}, PlaylistOwner: "o", PlaylistName: "n"}
	cols, vals, err = Assemble(rec, testColumns)
	if err != nil {
		t.Fatalf("Assemble(playlist) error = %v", err)
	}
	if len(cols) != 9 || vals[7] != "o" || vals[8] != "n" {
		t.Errorf("playlist row = %v / %v", cols, vals)
	}

	short := testColumns
	short.Playlist = []string{"artists", "playlist_name"}
	if _, _, err := Assemble(rec, short); !errors.Is(err, ErrFieldCountMismatch) {
		t.Errorf("error = %v, want ErrFieldCountMismatch", err)
	}
	long := testColumns
	long.Base = append(append([]string{}, testColumns.Base...), "extra")
	if _, _, err := Assemble(rec, long); !errors.Is(err, ErrFieldCountMismatch) {
		t.Errorf("error = %v, want ErrFieldCountMismatch", err)
	}
}

func TestErrorClassString(t *testing.T) {
	for class, want := range map[ErrorClass]string{
		ErrorClassRecoverable: "recoverable",
		ErrorClassPersistence: "persistence",
		ErrorClassFatal:       "fatal",
		ErrorClass(9):         "unknown",
	} {
		if got := class.String(); got != want {
			t.Errorf("ErrorClass(%d).String() = %q, want %q", class, got, want)
		}
	}
}
