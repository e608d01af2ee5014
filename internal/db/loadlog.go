package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/joeblew999/plat-trails/internal/service"
)

const loadLogSchema = `CREATE TABLE IF NOT EXISTS layer_loads (
	layer_id    VARCHAR NOT NULL,
	state       VARCHAR NOT NULL,
	features    INTEGER NOT NULL,
	error       VARCHAR,
	started_at  TIMESTAMP NOT NULL,
	recorded_at TIMESTAMP NOT NULL
)`

// LoadLog appends every layer load transition to the layer_loads table.
// It implements service.LoadRecorder.
type LoadLog struct {
	db  *sql.DB
	now func() time.Time
}

// NewLoadLog creates the layer_loads table if needed.
func NewLoadLog(ctx context.Context, db *sql.DB) (*LoadLog, error) {
	if _, err := db.ExecContext(ctx, loadLogSchema); err != nil {
		return nil, err
	}
	return &LoadLog{db: db, now: time.Now}, nil
}

// RecordLoad stores one load state transition.
func (l *LoadLog) RecordLoad(ctx context.Context, st service.LoadStatus) error {
	var errText sql.NullString
	if st.Error != "" {
		errText = sql.NullString{String: st.Error, Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO layer_loads (layer_id, state, features, error, started_at, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		st.LayerID, string(st.State), st.Features, errText, st.StartedAt, l.now().UTC(),
	)
	return err
}

// LoadRecord is one row of the load log.
type LoadRecord struct {
	LayerID    string    `json:"layerId" doc:"Layer identifier"`
	State      string    `json:"state" doc:"Load state"`
	Features   int       `json:"features" doc:"Features loaded"`
	Error      string    `json:"error,omitempty" doc:"Failure reason"`
	RecordedAt time.Time `json:"recordedAt" doc:"When the transition was recorded"`
}

// Recent returns the latest transitions, newest first. An empty layerID
// matches every layer.
func (l *LoadLog) Recent(ctx context.Context, layerID string, limit int) ([]LoadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT layer_id, state, features, error, recorded_at FROM layer_loads
		 WHERE ? = '' OR layer_id = ?
		 ORDER BY recorded_at DESC, rowid DESC LIMIT ?`,
		layerID, layerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []LoadRecord{}
	for rows.Next() {
		var rec LoadRecord
		var errText sql.NullString
		if err := rows.Scan(&rec.LayerID, &rec.State, &rec.Features, &errText, &rec.RecordedAt); err != nil {
			return nil, err
		}
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
