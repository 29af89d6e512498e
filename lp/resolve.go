package lp

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/lpbot/telemetry"
)

// Resolver turns a classified link into a FieldSet. Every call goes to the
// metadata source; nothing is cached.
type Resolver struct {
	Source  MetadataSource
	Timeout time.Duration
}

// Resolve fetches and normalizes metadata for url. Any failure, timeout or
// unexpected shape is reported as ErrMetadataFetch.
func (r *Resolver) Resolve(ctx context.Context, cat Category, url string) (fs FieldSet, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "lp.Resolve",
		attribute.String("category", cat.String()),
		attribute.String("url", url),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		telemetry.ObserveMetadata(time.Since(start))
		if err != nil {
			telemetry.IncMetadataFailure()
		}
	}()

	switch cat {
	case CategoryAlbum:
		return r.album(ctx, url)
	case CategoryPlaylist:
		return r.playlist(ctx, url)
	default:
		return FieldSet{}, fmt.Errorf("%w: %s", ErrUnparseableURL, url)
	}
}

func (r *Resolver) album(ctx context.Context, url string) (FieldSet, error) {
	a, err := r.Source.Album(ctx, url)
	if err != nil {
		return FieldSet{}, fmt.Errorf("%w: album %s: %w", ErrMetadataFetch, url, err)
	}
	if a == nil || a.Name == "" {
		return FieldSet{}, fmt.Errorf("%w: album %s: response has no name", ErrMetadataFetch, url)
	}
	artists := make([]string, 0, len(a.Artists))
	for _, artist := range a.Artists {
		artists = append(artists, artist.Name)
	}
	return FieldSet{
		Category:  CategoryAlbum,
		Artists:   artists,
		AlbumName: a.Name,
	}, nil
}

func (r *Resolver) playlist(ctx context.Context, url string) (FieldSet, error) {
	p, err := r.Source.Playlist(ctx, url)
	if err != nil {
		return FieldSet{}, fmt.Errorf("%w: playlist %s: %w", ErrMetadataFetch, url, err)
	}
	if p == nil || p.Name == "" {
		return FieldSet{}, fmt.Errorf("%w: playlist %s: response has no name", ErrMetadataFetch, url)
	}
	owner := p.Owner.DisplayName
	if owner == "" {
		owner = p.Owner.ID
	}

	seen := make(map[string]struct{})
	artists := []string{}
	for _, track := range p.Tracks {
		for _, artist := range track.Artists {
			if _, ok := seen[artist.Name]; ok {
				continue
			}
			seen[artist.Name] = struct{}{}
			artists = append(artists, artist.Name)
		}
	}
	return FieldSet{
		Category:      CategoryPlaylist,
		Artists:       artists,
		PlaylistOwner: owner,
		PlaylistName:  p.Name,
	}, nil
}
