package seed

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
)

type Summary struct {
	Artists int
	Albums  int
	Tracks  int
}

// Service creates and fills the demo music tables on an open handle. The
// handle comes from dbconn, so the same seeder serves duckdb and postgres.
type Service struct {
	cfg Config
	log *slog.Logger
	db  *sql.DB
}

func NewService(cfg Config, logger *slog.Logger, db *sql.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{cfg: cfg, log: logger, db: db}, nil
}

const (
	createArtists = `CREATE TABLE artists (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)`
	createAlbums  = `CREATE TABLE albums (id INTEGER PRIMARY KEY, artist_id INTEGER NOT NULL, title VARCHAR NOT NULL, year INTEGER NOT NULL)`
	createTracks  = `CREATE TABLE tracks (id INTEGER PRIMARY KEY, album_id INTEGER NOT NULL, title VARCHAR NOT NULL, duration_ms INTEGER NOT NULL, genre VARCHAR NOT NULL)`

	insertArtist = `INSERT INTO artists (id, name) VALUES ($1, $2)`
	insertAlbum  = `INSERT INTO albums (id, artist_id, title, year) VALUES ($1, $2, $3, $4)`
	insertTrack  = `INSERT INTO tracks (id, album_id, title, duration_ms, genre) VALUES ($1, $2, $3, $4, $5)`
)

func (s *Service) Run(ctx context.Context) (Summary, error) {
	if s.cfg.Drop {
		for _, table := range []string{"tracks", "albums", "artists"} {
			if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return Summary{}, fmt.Errorf("drop table %s: %w", table, err)
			}
		}
	}
	for _, stmt := range []string{createArtists, createAlbums, createTracks} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return Summary{}, fmt.Errorf("create table: %w", err)
		}
	}

	generator := NewGenerator(s.cfg.Seed)
	artists, albums, tracks := generator.Catalog(s.cfg.Artists, s.cfg.AlbumsPerArtist, s.cfg.TracksPerAlbum)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, artist := range artists {
		if _, err := tx.ExecContext(ctx, insertArtist, artist.ID, artist.Name); err != nil {
			return Summary{}, fmt.Errorf("insert artist: %w", err)
		}
	}
	for _, album := range albums {
		if _, err := tx.ExecContext(ctx, insertAlbum, album.ID, album.ArtistID, album.Title, album.Year); err != nil {
			return Summary{}, fmt.Errorf("insert album: %w", err)
		}
	}
	for _, track := range tracks {
		if _, err := tx.ExecContext(ctx, insertTrack, track.ID, track.AlbumID, track.Title, track.DurationMs, track.Genre); err != nil {
			return Summary{}, fmt.Errorf("insert track: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit: %w", err)
	}

	summary := Summary{Artists: len(artists), Albums: len(albums), Tracks: len(tracks)}
	s.log.Info("demo data seeded",
		slog.Int("artists", summary.Artists),
		slog.Int("albums", summary.Albums),
		slog.Int("tracks", summary.Tracks),
	)
	return summary, nil
}
