// Package posters provides read and write access to the durable poster store.
package posters

import (
	"context"
	"time"
)

// Kind identifies a texture channel of a poster.
type Kind string

const (
	KindAlbedo   Kind = "albedo"
	KindEmissive Kind = "emissive"
	KindNormal   Kind = "normal"
)

// Valid reports whether k names a known texture channel.
func (k Kind) Valid() bool {
	switch k {
	case KindAlbedo, KindEmissive, KindNormal:
		return true
	}
	return false
}

// Poster is one poster record.
type Poster struct {
	ID        int64     `json:"id"`
	Creator   int64     `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
	Stopped   bool      `json:"stopped"`
	Lockout   bool      `json:"lockout"`
	Servable  bool      `json:"servable"`
}

// Store defines the poster store operations.
//
// Reads distinguish absence from failure: the bool is false when no row
// matches, the error is non-nil only when the store itself failed.
type Store interface {
	// SelectRandomServable picks one servable poster id uniformly at
	// random, using the store's own randomization primitive.
	SelectRandomServable(ctx context.Context) (int64, bool, error)

	// ImageURL returns the image URL of the given poster for one texture
	// channel. A missing poster or missing channel is not an error.
	ImageURL(ctx context.Context, id int64, kind Kind) (string, bool, error)

	// CreatePoster inserts a new poster owned by creator.
	CreatePoster(ctx context.Context, creator int64) (*Poster, error)

	// GetPoster returns one poster scoped to its creator.
	GetPoster(ctx context.Context, creator, id int64) (*Poster, bool, error)

	// PostersByCreator lists a creator's posters, newest first.
	PostersByCreator(ctx context.Context, creator int64) ([]Poster, error)

	// SetStopped updates the stopped flag of a creator's poster. The bool
	// reports whether the poster existed.
	SetStopped(ctx context.Context, creator, id int64, stopped bool) (bool, error)

	// SetImageURL inserts or replaces the image URL for one texture
	// channel of a poster.
	SetImageURL(ctx context.Context, id int64, kind Kind, url string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources.
	Close() error
}
