// Package sqlitestore persists the engine's terminal output: the
// enriched incident table and the per-run summary. This is the only
// persistence the system carries; everything upstream is in-memory.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/railsafe/milepost-linkage/internal/domain"
	"github.com/railsafe/milepost-linkage/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS enriched_incident (
	incident_id         TEXT PRIMARY KEY,
	railroad            TEXT,
	state               TEXT,
	report_date         TEXT,
	latitude            TEXT,
	longitude           TEXT,
	milepost            TEXT,
	matched_milepost_id TEXT,
	match_method        TEXT NOT NULL,
	match_distance_m    REAL,
	confidence_flag     INTEGER NOT NULL,
	unmatched_reason    TEXT,
	extra               TEXT,
	processed_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_summary (
	run_at           TEXT NOT NULL,
	total_incidents  INTEGER NOT NULL,
	registry_records INTEGER NOT NULL,
	registry_indexed INTEGER NOT NULL,
	spatial          INTEGER NOT NULL,
	fallback         INTEGER NOT NULL,
	unmatched        INTEGER NOT NULL,
	matched_pct      REAL NOT NULL,
	detail           TEXT NOT NULL
);
`

// Store writes enriched incidents and run summaries to a SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// WriteEnriched upserts the full enriched record set in one transaction.
// Reruns over the same snapshot replace rows rather than duplicating
// them, keeping the table idempotent per incident id.
func (s *Store) WriteEnriched(ctx context.Context, records []domain.EnrichedIncident) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enriched_incident (
			incident_id, railroad, state, report_date, latitude, longitude, milepost,
			matched_milepost_id, match_method, match_distance_m, confidence_flag,
			unmatched_reason, extra, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(incident_id) DO UPDATE SET
			matched_milepost_id = excluded.matched_milepost_id,
			match_method        = excluded.match_method,
			match_distance_m    = excluded.match_distance_m,
			confidence_flag     = excluded.confidence_flag,
			unmatched_reason    = excluded.unmatched_reason,
			processed_at        = excluded.processed_at`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		inc, match := rec.Incident, rec.Match

		var reportDate any
		if !inc.Date.IsZero() {
			reportDate = inc.Date.Format("2006-01-02")
		}
		var milepostID any
		if match.MilepostID != "" {
			milepostID = match.MilepostID
		}
		var distance any
		if match.DistanceM != nil {
			distance = *match.DistanceM
		}
		var reason any
		if match.Reason != "" {
			reason = string(match.Reason)
		}
		var extra any
		if len(inc.Extra) > 0 {
			data, err := json.Marshal(inc.Extra)
			if err != nil {
				return fmt.Errorf("marshal extra attributes of %s: %w", inc.ID, err)
			}
			extra = string(data)
		}

		if _, err := stmt.ExecContext(ctx,
			inc.ID, inc.Railroad, inc.State, reportDate, inc.Latitude, inc.Longitude, inc.Milepost,
			milepostID, string(match.Method), distance, boolInt(match.Confidence),
			reason, extra, match.ProcessedAt.UTC().Format("2006-01-02T15:04:05Z"),
		); err != nil {
			return fmt.Errorf("insert incident %s: %w", inc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("enriched table written", "rows", len(records))
	return nil
}

// WriteSummary appends the run's aggregate report. The breakdown maps
// land as JSON in the detail column; the headline numbers get their own
// columns for easy querying.
func (s *Store) WriteSummary(ctx context.Context, summary pipeline.Summary) error {
	detail, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_summary (
			run_at, total_incidents, registry_records, registry_indexed,
			spatial, fallback, unmatched, matched_pct, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		domain.Now().UTC().Format("2006-01-02T15:04:05Z"),
		summary.TotalIncidents, summary.RegistryRecords, summary.RegistryIndexed,
		summary.Spatial, summary.Fallback, summary.Unmatched, summary.MatchedPct,
		string(detail),
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
