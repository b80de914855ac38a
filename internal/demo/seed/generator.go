package seed

import (
	"fmt"
	"math/rand"
)

type Artist struct {
	ID   int
	Name string
}

type Album struct {
	ID       int
	ArtistID int
	Title    string
	Year     int
}

type Track struct {
	ID         int
	AlbumID    int
	Title      string
	DurationMs int
	Genre      string
}

// Generator produces a deterministic fake music catalog for a given seed,
// so demo runs are reproducible.
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

var (
	nameLead = []string{"Electric", "Midnight", "Silver", "Crimson", "Velvet", "Neon", "Hollow", "Golden", "Wandering", "Quiet"}
	nameTail = []string{"Foxes", "Harbor", "Signals", "Mirrors", "Tigers", "Season", "Engines", "Rivers", "Parade", "Static"}
	genres   = []string{"rock", "jazz", "electronic", "folk", "hip-hop", "classical"}
)

func (g *Generator) ArtistName() string {
	return pickOne(g.rnd, nameLead) + " " + pickOne(g.rnd, nameTail)
}

func (g *Generator) AlbumTitle() string {
	return pickOne(g.rnd, nameTail) + " " + pickOne(g.rnd, []string{"I", "II", "III", "Live", "Sessions", "Deluxe"})
}

func (g *Generator) AlbumYear() int {
	return 1970 + g.rnd.Intn(56)
}

func (g *Generator) TrackTitle(n int) string {
	return fmt.Sprintf("%s %s No. %d", pickOne(g.rnd, nameLead), pickOne(g.rnd, nameTail), n)
}

func (g *Generator) TrackDurationMs() int {
	// 90 seconds to 8 minutes
	return (90 + g.rnd.Intn(390)) * 1000
}

func (g *Generator) Genre() string {
	return pickOne(g.rnd, genres)
}

// Catalog builds the full dataset up front so the seeder can insert it in
// one transaction.
func (g *Generator) Catalog(artists, albumsPerArtist, tracksPerAlbum int) ([]Artist, []Album, []Track) {
	artistRows := make([]Artist, 0, artists)
	albumRows := make([]Album, 0, artists*albumsPerArtist)
	trackRows := make([]Track, 0, artists*albumsPerArtist*tracksPerAlbum)

	trackID := 0
	albumID := 0
	for a := 1; a <= artists; a++ {
		artistRows = append(artistRows, Artist{ID: a, Name: g.ArtistName()})
		for b := 0; b < albumsPerArtist; b++ {
			albumID++
			albumRows = append(albumRows, Album{
				ID:       albumID,
				ArtistID: a,
				Title:    g.AlbumTitle(),
				Year:     g.AlbumYear(),
			})
			for n := 1; n <= tracksPerAlbum; n++ {
				trackID++
				trackRows = append(trackRows, Track{
					ID:         trackID,
					AlbumID:    albumID,
					Title:      g.TrackTitle(n),
					DurationMs: g.TrackDurationMs(),
					Genre:      g.Genre(),
				})
			}
		}
	}
	return artistRows, albumRows, trackRows
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
