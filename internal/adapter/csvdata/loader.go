// Package csvdata loads the two static input snapshots: the incident
// table and the milepost registry. Both are plain CSV exports whose
// column naming drifts between vintages, so columns are located by
// candidate name rather than position.
package csvdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/railsafe/milepost-linkage/internal/domain"
)

// Column candidates, first hit wins. Matching is case-insensitive.
var (
	incidentIDCols = []string{"INCDTNO", "INCIDENT_ID", "ID"}
	railroadCols   = []string{"RAILROAD", "RR", "REPORTING_RAILROAD"}
	milepostCols   = []string{"MILEPOST", "MP"}
	latitudeCols   = []string{"LATITUDE", "LAT"}
	longitudeCols  = []string{"LONGITUD", "LONGITUDE", "LONG", "LON"}
	stateCols      = []string{"STATE", "STATE_NAME", "STATE_ABBR"}
	geomCols       = []string{"THE_GEOM", "GEOM", "GEOMETRY"}
)

// LoadIncidents reads the incident snapshot. Rows with a structurally
// missing id are rejected here, before they can enter the engine; their
// count is logged because dropped rows are a data-quality signal.
func LoadIncidents(path string, logger *slog.Logger) ([]domain.IncidentRecord, error) {
	rows, header, err := readAll(path)
	if err != nil {
		return nil, err
	}

	idIdx, ok := header.find(incidentIDCols)
	if !ok {
		return nil, fmt.Errorf("%s: no incident id column (tried %v)", path, incidentIDCols)
	}
	rrIdx, _ := header.find(railroadCols)
	mpIdx, _ := header.find(milepostCols)
	latIdx, _ := header.find(latitudeCols)
	lonIdx, _ := header.find(longitudeCols)
	stateIdx, _ := header.find(stateCols)

	known := map[int]bool{idIdx: true, rrIdx: true, mpIdx: true, latIdx: true, lonIdx: true, stateIdx: true}

	incidents := make([]domain.IncidentRecord, 0, len(rows))
	rejected := 0
	for _, row := range rows {
		id := strings.TrimSpace(cell(row, idIdx))
		if id == "" {
			rejected++
			continue
		}

		inc := domain.IncidentRecord{
			ID:        id,
			Railroad:  cell(row, rrIdx),
			Milepost:  cell(row, mpIdx),
			Latitude:  cell(row, latIdx),
			Longitude: cell(row, lonIdx),
			State:     cell(row, stateIdx),
			Date:      parseDate(header, row),
		}

		// Everything else rides along untouched.
		for i, name := range header.names {
			if known[i] || i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			if inc.Extra == nil {
				inc.Extra = make(map[string]string)
			}
			inc.Extra[name] = row[i]
		}
		incidents = append(incidents, inc)
	}

	if rejected > 0 {
		logger.Warn("rejected incident rows with missing id", "count", rejected, "path", path)
	}
	logger.Info("loaded incidents", "count", len(incidents), "path", path)
	return incidents, nil
}

// LoadMileposts reads the milepost registry. Coordinates come from
// explicit LAT/LONG columns when present, otherwise from a
// "POINT (lon lat)" geometry column. Registry ids are derived
// deterministically from the record's key fields.
func LoadMileposts(path string, logger *slog.Logger) ([]domain.MilepostRecord, error) {
	rows, header, err := readAll(path)
	if err != nil {
		return nil, err
	}

	rrIdx, ok := header.find(railroadCols)
	if !ok {
		return nil, fmt.Errorf("%s: no railroad column", path)
	}
	mpIdx, ok := header.find(milepostCols)
	if !ok {
		return nil, fmt.Errorf("%s: no milepost column", path)
	}
	latIdx, hasLat := header.find(latitudeCols)
	lonIdx, hasLon := header.find(longitudeCols)
	geomIdx, hasGeom := header.find(geomCols)
	if (!hasLat || !hasLon) && !hasGeom {
		return nil, fmt.Errorf("%s: no coordinate columns and no geometry column", path)
	}

	mileposts := make([]domain.MilepostRecord, 0, len(rows))
	for _, row := range rows {
		var lat, lon float64
		if hasLat && hasLon {
			lat = parseFloatOrZero(cell(row, latIdx))
			lon = parseFloatOrZero(cell(row, lonIdx))
		}
		if lat == 0 && lon == 0 && hasGeom {
			lon, lat = parsePoint(cell(row, geomIdx))
		}

		mp := domain.MilepostRecord{
			Railroad: cell(row, rrIdx),
			Milepost: cell(row, mpIdx),
			Lat:      lat,
			Lon:      lon,
		}
		mp.ID = domain.MilepostID(mp.Railroad, mp.Milepost, mp.Lat, mp.Lon)
		mileposts = append(mileposts, mp)
	}

	logger.Info("loaded milepost registry", "count", len(mileposts), "path", path)
	return mileposts, nil
}

type headerIndex struct {
	names []string
	byKey map[string]int
}

func (h headerIndex) find(candidates []string) (int, bool) {
	for _, c := range candidates {
		if i, ok := h.byKey[c]; ok {
			return i, true
		}
	}
	return -1, false
}

func readAll(path string) ([][]string, headerIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, headerIndex{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // vintage exports have ragged rows

	header, err := reader.Read()
	if err != nil {
		return nil, headerIndex{}, fmt.Errorf("read header of %s: %w", path, err)
	}

	idx := headerIndex{names: header, byKey: make(map[string]int, len(header))}
	for i, name := range header {
		key := strings.ToUpper(strings.TrimSpace(name))
		if _, taken := idx.byKey[key]; !taken {
			idx.byKey[key] = i
		}
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, headerIndex{}, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, idx, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parsePoint extracts (lon, lat) from a WKT-style "POINT (lon lat)".
func parsePoint(s string) (lon, lat float64) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "POINT") {
		return 0, 0
	}
	open := strings.IndexByte(s, '(')
	closing := strings.IndexByte(s, ')')
	if open < 0 || closing <= open {
		return 0, 0
	}
	fields := strings.Fields(s[open+1 : closing])
	if len(fields) != 2 {
		return 0, 0
	}
	lonV, errLon := strconv.ParseFloat(fields[0], 64)
	latV, errLat := strconv.ParseFloat(fields[1], 64)
	if errLon != nil || errLat != nil {
		return 0, 0
	}
	return lonV, latV
}

// parseDate assembles the report date from YEAR/MONTH/DAY columns when
// all three are present and sane, mirroring how the source data splits
// dates.
func parseDate(header headerIndex, row []string) time.Time {
	yIdx, okY := header.find([]string{"YEAR", "YR"})
	mIdx, okM := header.find([]string{"MONTH", "IMO"})
	dIdx, okD := header.find([]string{"DAY"})
	if !okY || !okM || !okD {
		return time.Time{}
	}

	year, errY := strconv.Atoi(cell(row, yIdx))
	month, errM := strconv.Atoi(cell(row, mIdx))
	day, errD := strconv.Atoi(cell(row, dIdx))
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}
	}
	if year < 100 {
		// Two-digit reporting years: the dataset starts in the 1970s.
		if year >= 70 {
			year += 1900
		} else {
			year += 2000
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
