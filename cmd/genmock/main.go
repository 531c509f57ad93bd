// Command genmock generates synthetic incident and milepost CSV
// fixtures with a known mix of spatial matches, fallback matches, and
// unmatchable records. It runs the actual matching engine over the
// generated data so the printed stats are the numbers test assertions
// should use.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -incidents-out testdata/incidents.csv \
//	  -mileposts-out testdata/mileposts.csv \
//	  -mileposts 500 -incidents 1000 -seed 42
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/railsafe/milepost-linkage/internal/domain"
	"github.com/railsafe/milepost-linkage/internal/observability"
	"github.com/railsafe/milepost-linkage/internal/pipeline"
)

// Registry rows are laid out along synthetic corridors radiating from a
// handful of division points, one corridor per railroad.
var corridors = []struct {
	railroad string
	state    string
	lat, lon float64
	// heading per milepost step, roughly 1.6 km in degrees
	dLat, dLon float64
}{
	{"BNSF", "IL", 41.8781, -87.6298, -0.0102, -0.0071},
	{"UP", "NE", 41.2565, -95.9345, 0.0006, -0.0143},
	{"CSXT", "GA", 33.7490, -84.3880, 0.0091, -0.0084},
	{"NS", "VA", 37.2707, -79.9414, 0.0044, -0.0131},
	{"CPKC", "MN", 44.9778, -93.2650, 0.0110, 0.0040},
}

// aliasedCodes maps a sample of legacy reporting codes onto the
// corridor railroads, exercising alias resolution in the fallback path.
var aliasedCodes = map[string]string{
	"BN":   "BNSF",
	"ATSF": "BNSF",
	"SP":   "UP",
	"CSX":  "CSXT",
	"SOU":  "NS",
	"SOO":  "CPKC",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	incidentsOut := flag.String("incidents-out", "", "output path for the incident snapshot CSV")
	milepostsOut := flag.String("mileposts-out", "", "output path for the milepost registry CSV")
	nMileposts := flag.Int("mileposts", 500, "registry rows to generate")
	nIncidents := flag.Int("incidents", 1000, "incident rows to generate")
	seed := flag.Int64("seed", 42, "rand seed; same seed, same fixtures")
	flag.Parse()

	if *incidentsOut == "" || *milepostsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -incidents-out, -mileposts-out")
	}

	// Fixed clock for reproducible ProcessedAt stamps in the stats run.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))

	registry := genRegistry(rng, *nMileposts)
	incidents := genIncidents(rng, registry, *nIncidents)

	if err := writeMileposts(*milepostsOut, registry); err != nil {
		return fmt.Errorf("writing registry fixture: %w", err)
	}
	log.Printf("wrote registry fixture: %s (%d rows)", *milepostsOut, len(registry))

	if err := writeIncidents(*incidentsOut, incidents); err != nil {
		return fmt.Errorf("writing incident fixture: %w", err)
	}
	log.Printf("wrote incident fixture: %s (%d rows)", *incidentsOut, len(incidents))

	return printStats(registry, incidents)
}

func genRegistry(rng *rand.Rand, n int) []domain.MilepostRecord {
	out := make([]domain.MilepostRecord, 0, n)
	for i := 0; i < n; i++ {
		c := corridors[i%len(corridors)]
		step := i / len(corridors)
		mp := strconv.FormatFloat(float64(step)+roundTenth(rng.Float64()), 'f', 1, 64)
		lat := c.lat + float64(step)*c.dLat
		lon := c.lon + float64(step)*c.dLon
		out = append(out, domain.MilepostRecord{
			ID:       domain.MilepostID(c.railroad, mp, lat, lon),
			Railroad: c.railroad,
			Milepost: mp,
			Lat:      lat,
			Lon:      lon,
		})
	}
	return out
}

func genIncidents(rng *rand.Rand, registry []domain.MilepostRecord, n int) []domain.IncidentRecord {
	out := make([]domain.IncidentRecord, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("INC-%06d", i+1)
		mp := registry[rng.Intn(len(registry))]
		inc := domain.IncidentRecord{
			ID:       id,
			Railroad: mp.Railroad,
			Milepost: mp.Milepost,
			State:    corridorState(mp.Railroad),
			Date:     time.Date(2020+rng.Intn(6), time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC),
		}

		switch bucket := rng.Float64(); {
		case bucket < 0.60:
			// Coordinates near the milepost: spatial match within ~200 m.
			inc.Latitude = formatCoord(mp.Lat + jitterDeg(rng, 200))
			inc.Longitude = formatCoord(mp.Lon + jitterDeg(rng, 200))
		case bucket < 0.75:
			// No coordinates, clean key: fallback match.
			inc.Latitude, inc.Longitude = "", ""
		case bucket < 0.85:
			// No coordinates, legacy reporting code: fallback with the
			// confidence flag set.
			inc.Latitude, inc.Longitude = "", ""
			inc.Railroad = legacyCode(rng, mp.Railroad)
		case bucket < 0.93:
			// Coordinates far off the network: too far, and the milepost
			// value is mangled so the fallback misses too.
			inc.Latitude = formatCoord(mp.Lat + 1.5 + rng.Float64())
			inc.Longitude = formatCoord(mp.Lon - 1.5 - rng.Float64())
			inc.Milepost = mp.Milepost + "9"
		default:
			// Garbage row: zero-island coordinates and no usable key.
			inc.Latitude, inc.Longitude = "0", "0"
			inc.Milepost = ""
		}
		out = append(out, inc)
	}
	return out
}

// jitterDeg returns a random offset up to roughly maxMeters, in degrees.
func jitterDeg(rng *rand.Rand, maxMeters float64) float64 {
	return (rng.Float64()*2 - 1) * maxMeters / 111195.0
}

func roundTenth(v float64) float64 {
	return float64(int(v*10)) / 10
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func corridorState(railroad string) string {
	for _, c := range corridors {
		if c.railroad == railroad {
			return c.state
		}
	}
	return ""
}

func legacyCode(rng *rand.Rand, canonical string) string {
	codes := make([]string, 0, len(aliasedCodes))
	for code, to := range aliasedCodes {
		if to == canonical {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return canonical
	}
	// Deterministic order before picking; map iteration order is not.
	sort.Strings(codes)
	return codes[rng.Intn(len(codes))]
}

func writeMileposts(path string, registry []domain.MilepostRecord) error {
	return writeCSV(path, []string{"MILEPOST_ID", "RAILROAD", "MILEPOST", "LAT", "LONG"}, len(registry), func(i int) []string {
		mp := registry[i]
		return []string{mp.ID, mp.Railroad, mp.Milepost, formatCoord(mp.Lat), formatCoord(mp.Lon)}
	})
}

func writeIncidents(path string, incidents []domain.IncidentRecord) error {
	return writeCSV(path, []string{"INCDTNO", "RAILROAD", "MILEPOST", "LATITUDE", "LONGITUD", "STATE", "YEAR", "MONTH", "DAY"}, len(incidents), func(i int) []string {
		inc := incidents[i]
		return []string{
			inc.ID, inc.Railroad, inc.Milepost, inc.Latitude, inc.Longitude, inc.State,
			strconv.Itoa(inc.Date.Year()), strconv.Itoa(int(inc.Date.Month())), strconv.Itoa(inc.Date.Day()),
		}
	})
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// printStats runs the real engine over the generated data so the
// printed numbers are exactly what the fixtures will produce in tests.
func printStats(registry []domain.MilepostRecord, incidents []domain.IncidentRecord) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reconciler, err := pipeline.NewReconciler(registry, pipeline.Options{
		ThresholdM: 400,
		Dims:       pipeline.Breakdowns{ByRailroad: true, ByState: true},
	}, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}

	_, summary, err := reconciler.Run(context.Background(), incidents)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", summary.TotalIncidents)
	fmt.Printf("Spatial: %d (%.2f%%)\n", summary.Spatial, summary.SpatialPct)
	fmt.Printf("Fallback: %d (%.2f%%)\n", summary.Fallback, summary.FallbackPct)
	fmt.Printf("Unmatched: %d\n", summary.Unmatched)
	for reason, n := range summary.UnmatchedReasons {
		fmt.Printf("  %s: %d\n", reason, n)
	}
	fmt.Println("\nBy railroad:")
	for railroad, c := range summary.ByRailroad {
		fmt.Printf("  %s: spatial=%d fallback=%d unmatched=%d\n", railroad, c.Spatial, c.Fallback, c.Unmatched)
	}
	return nil
}
