// synth_movielens.go generates a small MovieLens-shaped dataset (ratings.csv
// and movies.csv) for running equilibrium without downloading the real one.
//
// Usage:
//
//	go run scripts/synth_movielens.go -out data/movielens -movies 500 -users 300 -seed 1
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

var genres = []string{
	"Action", "Adventure", "Animation", "Children", "Comedy", "Crime",
	"Documentary", "Drama", "Fantasy", "Horror", "Musical", "Mystery",
	"Romance", "Sci-Fi", "Thriller", "War", "Western",
}

var titleWords = []string{
	"Silent", "River", "Midnight", "Glass", "Empire", "Summer", "Iron",
	"Hollow", "Crimson", "Last", "Paper", "Northern", "Echo", "Garden",
}

func main() {
	outDir := flag.String("out", "data/movielens", "output directory")
	numMovies := flag.Int("movies", 500, "number of movies")
	numUsers := flag.Int("users", 300, "number of users")
	perUser := flag.Int("ratings-per-user", 40, "mean ratings per user")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *numMovies < 1 || *numUsers < 1 || *perUser < 1 {
		log.Fatalf("movies, users and ratings-per-user must be positive")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	src := rand.NewPCG(*seed, 0x5eed)
	rng := rand.New(src)

	quality := distuv.Normal{Mu: 3.5, Sigma: 0.6, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 0.8, Src: src}
	count := distuv.Poisson{Lambda: float64(*perUser), Src: src}

	means := make([]float64, *numMovies)
	popularity := make([]float64, *numMovies)
	movies := make([][]string, 0, *numMovies+1)
	movies = append(movies, []string{"movieId", "title", "genres"})
	for i := range *numMovies {
		means[i] = quality.Rand()
		// Zipf-like popularity so a few titles collect most ratings.
		popularity[i] = 1 / math.Pow(float64(rng.IntN(*numMovies)+1), 0.8)
		movies = append(movies, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%s %s (%d)", titleWords[rng.IntN(len(titleWords))], titleWords[rng.IntN(len(titleWords))], 1970+rng.IntN(55)),
			pickGenres(rng),
		})
	}

	ratings := [][]string{{"userId", "movieId", "rating", "timestamp"}}
	ts := int64(1_500_000_000)
	for u := range *numUsers {
		n := min(max(int(count.Rand()), 1), *numMovies)
		w := sampleuv.NewWeighted(popularity, src)
		for range n {
			idx, ok := w.Take()
			if !ok {
				break
			}
			r := halfStar(means[idx] + noise.Rand())
			ts += int64(rng.IntN(3600))
			ratings = append(ratings, []string{
				strconv.Itoa(u + 1),
				strconv.Itoa(idx + 1),
				strconv.FormatFloat(r, 'f', 1, 64),
				strconv.FormatInt(ts, 10),
			})
		}
	}

	if err := writeCSV(filepath.Join(*outDir, "movies.csv"), movies); err != nil {
		log.Fatalf("write movies: %v", err)
	}
	if err := writeCSV(filepath.Join(*outDir, "ratings.csv"), ratings); err != nil {
		log.Fatalf("write ratings: %v", err)
	}
	fmt.Printf("wrote %d movies and %d ratings to %s\n", *numMovies, len(ratings)-1, *outDir)
}

func pickGenres(rng *rand.Rand) string {
	n := 1 + rng.IntN(3)
	picked := make([]string, 0, n)
	for _, i := range rng.Perm(len(genres))[:n] {
		picked = append(picked, genres[i])
	}
	return strings.Join(picked, "|")
}

// halfStar clamps to the 0.5-5.0 scale in half-star steps.
func halfStar(v float64) float64 {
	v = math.Round(v*2) / 2
	return math.Min(5, math.Max(0.5, v))
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
