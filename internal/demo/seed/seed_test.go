package seed

import (
	"context"
	"reflect"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.Driver != "duckdb" {
		t.Fatalf("Driver = %q", cfg.Driver)
	}
	if cfg.Database != "sqlchat_demo.db" {
		t.Fatalf("Database = %q", cfg.Database)
	}
	if cfg.Artists != 25 || cfg.AlbumsPerArtist != 3 || cfg.TracksPerAlbum != 10 {
		t.Fatalf("counts = %d/%d/%d", cfg.Artists, cfg.AlbumsPerArtist, cfg.TracksPerAlbum)
	}
	if !cfg.Drop {
		t.Fatal("Drop should default to true")
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"SQLCHAT_DEMO_DRIVER":   "postgres",
		"SQLCHAT_DEMO_HOST":     "db",
		"SQLCHAT_DEMO_PORT":     "5432",
		"SQLCHAT_DEMO_DATABASE": "music",
		"SQLCHAT_DEMO_ARTISTS":  "5",
		"SQLCHAT_DEMO_DROP":     "false",
		"SQLCHAT_DEMO_SEED":     "7",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.Driver != "postgres" || cfg.Host != "db" || cfg.Database != "music" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Artists != 5 || cfg.Drop || cfg.Seed != 7 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigFromEnvRejectsNonPositiveCounts(t *testing.T) {
	_, err := LoadConfigFromEnv(mapLookup(map[string]string{"SQLCHAT_DEMO_ARTISTS": "0"}))
	if err == nil || !strings.Contains(err.Error(), "positive") {
		t.Fatalf("error = %v", err)
	}
}

func TestGeneratorIsDeterministicPerSeed(t *testing.T) {
	a1, al1, t1 := NewGenerator(42).Catalog(3, 2, 4)
	a2, al2, t2 := NewGenerator(42).Catalog(3, 2, 4)
	if !reflect.DeepEqual(a1, a2) || !reflect.DeepEqual(al1, al2) || !reflect.DeepEqual(t1, t2) {
		t.Fatal("same seed must produce the same catalog")
	}
	if len(a1) != 3 || len(al1) != 6 || len(t1) != 24 {
		t.Fatalf("sizes = %d/%d/%d", len(a1), len(al1), len(t1))
	}
	for _, track := range t1 {
		if track.DurationMs < 90_000 || track.DurationMs > 480_000 {
			t.Fatalf("duration out of range: %d", track.DurationMs)
		}
	}
}

func TestSeederCreatesAndFillsTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup: %v", err)
	}
	defer func() { _ = db.Close() }()

	for _, table := range []string{"tracks", "albums", "artists"} {
		mock.ExpectExec("DROP TABLE IF EXISTS " + table).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta(createArtists)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(createAlbums)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(createTracks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO artists")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO albums")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tracks")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	cfg := DefaultConfig()
	cfg.Artists = 1
	cfg.AlbumsPerArtist = 1
	cfg.TracksPerAlbum = 2
	cfg.Seed = 1

	service, err := NewService(cfg, nil, db)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Artists != 1 || summary.Albums != 1 || summary.Tracks != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSeederSkipsDropWhenDisabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(createArtists)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(createAlbums)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(createTracks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO artists")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO albums")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tracks")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cfg := DefaultConfig()
	cfg.Artists = 1
	cfg.AlbumsPerArtist = 1
	cfg.TracksPerAlbum = 1
	cfg.Drop = false

	service, err := NewService(cfg, nil, db)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := service.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
