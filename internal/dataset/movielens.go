package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/MikeSquared-Agency/Equilibrium/internal/config"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

const noGenres = "(no genres listed)"

// Movie is one row of movies.csv.
type Movie struct {
	ID     string
	Title  string
	Genres []string
}

// Options controls how ratings are turned into item attributes.
type Options struct {
	RatingsFile string
	MoviesFile  string
	MinRatings  int
	MaxRating   float64
	RiskSeed    uint64
}

// OptionsFromConfig maps the dataset config section onto loader options.
func OptionsFromConfig(cfg config.DatasetConfig) Options {
	return Options{
		RatingsFile: cfg.RatingsFile,
		MoviesFile:  cfg.MoviesFile,
		MinRatings:  cfg.MinRatings,
		MaxRating:   cfg.MaxRating,
		RiskSeed:    cfg.RiskSeed,
	}
}

// LoadMovieLens reads ratings and movies from dir and builds a catalog.
// A missing movies file is tolerated; items then have no title or genres.
func LoadMovieLens(dir string, opts Options) (*welfare.Catalog, error) {
	rf, err := os.Open(filepath.Join(dir, opts.RatingsFile))
	if err != nil {
		return nil, fmt.Errorf("open ratings: %w", err)
	}
	defer rf.Close()
	ratings, err := ReadRatings(rf)
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}

	movies := map[string]Movie{}
	mf, err := os.Open(filepath.Join(dir, opts.MoviesFile))
	switch {
	case err == nil:
		defer mf.Close()
		if movies, err = ReadMovies(mf); err != nil {
			return nil, fmt.Errorf("read movies: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("open movies: %w", err)
	}

	return BuildCatalog(ratings, movies, opts)
}

// ReadRatings parses a userId,movieId,rating,timestamp CSV into ratings per movie.
func ReadRatings(r io.Reader) (map[string][]float64, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	idCol, ratingCol := column(header, "movieId"), column(header, "rating")
	if idCol < 0 || ratingCol < 0 {
		return nil, fmt.Errorf("header %v: need movieId and rating columns", header)
	}

	out := make(map[string][]float64)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[ratingCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: rating %q: %w", line, rec[ratingCol], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("line %d: rating %q is not finite", line, rec[ratingCol])
		}
		id := strings.TrimSpace(rec[idCol])
		out[id] = append(out[id], v)
	}
	return out, nil
}

// ReadMovies parses a movieId,title,genres CSV.
func ReadMovies(r io.Reader) (map[string]Movie, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	idCol, titleCol, genresCol := column(header, "movieId"), column(header, "title"), column(header, "genres")
	if idCol < 0 {
		return nil, fmt.Errorf("header %v: need movieId column", header)
	}

	out := make(map[string]Movie)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		m := Movie{ID: strings.TrimSpace(rec[idCol])}
		if titleCol >= 0 {
			m.Title = rec[titleCol]
		}
		if genresCol >= 0 {
			m.Genres = splitGenres(rec[genresCol])
		}
		out[m.ID] = m
	}
	return out, nil
}

func splitGenres(s string) []string {
	if s == "" || s == noGenres {
		return nil
	}
	var out []string
	for _, g := range strings.Split(s, "|") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

func column(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
			return i
		}
	}
	return -1
}

// BuildCatalog derives item attributes from raw ratings:
//
//	relevance  = mean rating / max rating
//	engagement = rating count / highest rating count
//	exposure   = 1 - engagement
//	risk       = simulated, uniform in [0, 1), seeded and assigned in id order
func BuildCatalog(ratings map[string][]float64, movies map[string]Movie, opts Options) (*welfare.Catalog, error) {
	if opts.MaxRating <= 0 {
		return nil, fmt.Errorf("max rating must be positive, got %f", opts.MaxRating)
	}

	ids := make([]string, 0, len(ratings))
	for id, rs := range ratings {
		if len(rs) > 0 && len(rs) >= opts.MinRatings {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no items with at least %d ratings", opts.MinRatings)
	}
	sort.Strings(ids)

	counts := make([]float64, len(ids))
	for i, id := range ids {
		counts[i] = float64(len(ratings[id]))
	}
	maxCount := floats.Max(counts)

	rng := rand.New(rand.NewPCG(opts.RiskSeed, opts.RiskSeed^0x5851f42d4c957f2d))
	items := make([]welfare.Item, len(ids))
	for i, id := range ids {
		engagement := counts[i] / maxCount
		m := movies[id]
		items[i] = welfare.Item{
			ID:     id,
			Title:  m.Title,
			Genres: m.Genres,
			Attributes: map[string]float64{
				welfare.AttrRelevance:  stat.Mean(ratings[id], nil) / opts.MaxRating,
				welfare.AttrEngagement: engagement,
				welfare.AttrExposure:   1 - engagement,
				welfare.AttrRisk:       rng.Float64(),
			},
		}
	}
	return welfare.NewCatalog(items)
}
