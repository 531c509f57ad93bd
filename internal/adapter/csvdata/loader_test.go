package csvdata

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadIncidents(t *testing.T) {
	csv := "INCDTNO,RAILROAD,MILEPOST,Latitude,Longitud,YEAR,MONTH,DAY,STATE,ACCDMG\n" +
		"I-100,CSXT,12.5A,41.8781,-87.6298,2021,3,14,IL,125000\n" +
		"I-101,csx,47,,,,,,IL,\n" +
		",BNSF,210,35.4676,-97.5164,2021,1,1,OK,9000\n" +
		"I-102,UP,301.2,41.2565,-95.9345,99,12,31,NE,500\n"

	path := writeCSV(t, "incidents.csv", csv)
	incidents, err := LoadIncidents(path, slog.Default())
	require.NoError(t, err)

	// Row without an id is rejected before it can enter the engine.
	require.Len(t, incidents, 3)

	first := incidents[0]
	assert.Equal(t, "I-100", first.ID)
	assert.Equal(t, "CSXT", first.Railroad)
	assert.Equal(t, "12.5A", first.Milepost)
	assert.Equal(t, "41.8781", first.Latitude)
	assert.Equal(t, "-87.6298", first.Longitude)
	assert.Equal(t, "IL", first.State)
	assert.Equal(t, time.Date(2021, 3, 14, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "125000", first.Extra["ACCDMG"])

	second := incidents[1]
	assert.Empty(t, second.Latitude)
	assert.True(t, second.Date.IsZero())

	// Two-digit reporting year resolves into the dataset's era.
	assert.Equal(t, 1999, incidents[2].Date.Year())
}

func TestLoadIncidents_NoIDColumn(t *testing.T) {
	path := writeCSV(t, "bad.csv", "RAILROAD,MILEPOST\nCSXT,12\n")
	_, err := LoadIncidents(path, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incident id column")
}

func TestLoadIncidents_MissingFile(t *testing.T) {
	_, err := LoadIncidents("/nonexistent.csv", slog.Default())
	require.Error(t, err)
}

func TestLoadMileposts_ExplicitColumns(t *testing.T) {
	csv := "RAILROAD,MILEPOST,LAT,LONG\n" +
		"CSXT,12.5,41.8782,-87.6299\n" +
		"BNSF,210.0,35.4676,-97.5164\n"

	path := writeCSV(t, "mileposts.csv", csv)
	mileposts, err := LoadMileposts(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, mileposts, 2)

	mp := mileposts[0]
	assert.Equal(t, "CSXT", mp.Railroad)
	assert.Equal(t, "12.5", mp.Milepost)
	assert.Equal(t, 41.8782, mp.Lat)
	assert.Equal(t, -87.6299, mp.Lon)
	assert.NotEmpty(t, mp.ID)
}

func TestLoadMileposts_GeometryColumn(t *testing.T) {
	csv := "the_geom,RAILROAD,MILEPOST\n" +
		"POINT (-87.6299 41.8782),CSXT,12.5\n" +
		"garbage,BNSF,210.0\n"

	path := writeCSV(t, "mileposts_geom.csv", csv)
	mileposts, err := LoadMileposts(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, mileposts, 2)

	assert.Equal(t, 41.8782, mileposts[0].Lat)
	assert.Equal(t, -87.6299, mileposts[0].Lon)

	// Unparseable geometry degrades to the (0,0) missing sentinel, which
	// the index builder will exclude.
	assert.Zero(t, mileposts[1].Lat)
	assert.Zero(t, mileposts[1].Lon)
}

func TestLoadMileposts_DeterministicIDs(t *testing.T) {
	csv := "RAILROAD,MILEPOST,LAT,LONG\nCSXT,12.5,41.8782,-87.6299\n"
	path := writeCSV(t, "mp.csv", csv)

	a, err := LoadMileposts(path, slog.Default())
	require.NoError(t, err)
	b, err := LoadMileposts(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestLoadMileposts_NoCoordinateSource(t *testing.T) {
	path := writeCSV(t, "mp.csv", "RAILROAD,MILEPOST\nCSXT,12.5\n")
	_, err := LoadMileposts(path, slog.Default())
	require.Error(t, err)
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		wantLon float64
		wantLat float64
	}{
		{"POINT (-87.6299 41.8782)", -87.6299, 41.8782},
		{"point (-87.6299 41.8782)", -87.6299, 41.8782},
		{"POINT(-87.6299 41.8782)", -87.6299, 41.8782},
		{"", 0, 0},
		{"LINESTRING (0 1, 2 3)", 0, 0},
		{"POINT ()", 0, 0},
		{"POINT (a b)", 0, 0},
	}

	for _, tt := range tests {
		lon, lat := parsePoint(tt.in)
		assert.Equal(t, tt.wantLon, lon, "input %q", tt.in)
		assert.Equal(t, tt.wantLat, lat, "input %q", tt.in)
	}
}
