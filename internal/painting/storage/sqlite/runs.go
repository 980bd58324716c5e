package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/timeutil"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("painting run not found")

// Run is one pass of the painter over a dataset.
type Run struct {
	RunID         string          `json:"run_id"`
	DatasetRoot   string          `json:"dataset_root"`
	ConfigJSON    json.RawMessage `json:"config_json,omitempty"`
	Status        string          `json:"status"`
	StartedAt     int64           `json:"started_at"`
	FinishedAt    *int64          `json:"finished_at,omitempty"`
	FramesTotal   int             `json:"frames_total"`
	FramesPainted int             `json:"frames_painted"`
	FramesFailed  int             `json:"frames_failed"`
	Error         string          `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return time.Duration(*r.FinishedAt - r.StartedAt)
}

// FrameRecord is the stored outcome of painting one frame. Error is empty
// for painted frames.
type FrameRecord struct {
	RunID          string                 `json:"run_id"`
	FrameID        string                 `json:"frame_id"`
	InputPoints    int                    `json:"input_points"`
	RetainedPoints int                    `json:"retained_points"`
	DurationNS     int64                  `json:"duration_ns"`
	Cameras        []painting.CameraStats `json:"cameras"`
	Overlaps       []painting.PairStats   `json:"overlaps"`
	ClassHistogram []int                  `json:"class_histogram"`
	OutputPath     string                 `json:"output_path,omitempty"`
	Error          string                 `json:"error,omitempty"`
	RecordedAt     int64                  `json:"recorded_at"`
}

// FrameRecordFromStats builds a record for a painted frame.
func FrameRecordFromStats(runID, frameID, outputPath string, st painting.Stats) *FrameRecord {
	return &FrameRecord{
		RunID:          runID,
		FrameID:        frameID,
		InputPoints:    st.InputPoints,
		RetainedPoints: st.RetainedPoints,
		DurationNS:     st.Duration.Nanoseconds(),
		Cameras:        st.Cameras,
		Overlaps:       st.Overlaps,
		ClassHistogram: st.ClassHistogram,
		OutputPath:     outputPath,
	}
}

// RunStore persists runs and their frames.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses wall time.
func NewRunStore(db *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db.DB, clock: clock}
}

// StartRun inserts a new running run. cfg is stored as JSON and may be nil.
func (s *RunStore) StartRun(datasetRoot string, framesTotal int, cfg interface{}) (*Run, error) {
	run := &Run{
		RunID:       uuid.New().String(),
		DatasetRoot: datasetRoot,
		Status:      RunStatusRunning,
		StartedAt:   s.clock.Now().UnixNano(),
		FramesTotal: framesTotal,
	}
	var cfgStr interface{}
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal run config: %w", err)
		}
		run.ConfigJSON = b
		cfgStr = string(b)
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO painting_runs (run_id, dataset_root, config_json, status, started_at, frames_total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, run.DatasetRoot, cfgStr, run.Status, run.StartedAt, run.FramesTotal,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert painting run: %w", err)
	}
	return run, nil
}

// RecordFrame stores a frame outcome. Recording the same frame twice
// replaces the earlier row.
func (s *RunStore) RecordFrame(rec *FrameRecord) error {
	if rec.RecordedAt == 0 {
		rec.RecordedAt = s.clock.Now().UnixNano()
	}
	cameras, err := json.Marshal(rec.Cameras)
	if err != nil {
		return fmt.Errorf("marshal camera stats: %w", err)
	}
	overlaps, err := json.Marshal(rec.Overlaps)
	if err != nil {
		return fmt.Errorf("marshal overlap stats: %w", err)
	}
	hist, err := json.Marshal(rec.ClassHistogram)
	if err != nil {
		return fmt.Errorf("marshal class histogram: %w", err)
	}

	err = retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO painting_frames (
				run_id, frame_id, input_points, retained_points, duration_ns,
				camera_stats_json, overlap_stats_json, class_histogram_json,
				output_path, error, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.FrameID, rec.InputPoints, rec.RetainedPoints, rec.DurationNS,
			string(cameras), string(overlaps), string(hist),
			rec.OutputPath, rec.Error, rec.RecordedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert frame %s: %w", rec.FrameID, err)
	}
	return nil
}

// FinishRun marks a run finished and derives its frame counters from the
// recorded frames.
func (s *RunStore) FinishRun(runID, status, errMsg string) error {
	finished := s.clock.Now().UnixNano()
	var affected int64
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE painting_runs SET
				status = ?,
				error = ?,
				finished_at = ?,
				frames_painted = (SELECT COUNT(*) FROM painting_frames WHERE run_id = ? AND error = ''),
				frames_failed = (SELECT COUNT(*) FROM painting_frames WHERE run_id = ? AND error != '')
			WHERE run_id = ?`,
			status, errMsg, finished, runID, runID, runID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `run_id, dataset_root, config_json, status, started_at, finished_at,
	frames_total, frames_painted, frames_failed, error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r        Run
		cfg      sql.NullString
		finished sql.NullInt64
	)
	if err := row.Scan(&r.RunID, &r.DatasetRoot, &cfg, &r.Status, &r.StartedAt, &finished,
		&r.FramesTotal, &r.FramesPainted, &r.FramesFailed, &r.Error); err != nil {
		return nil, err
	}
	if cfg.Valid && cfg.String != "" {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	if finished.Valid {
		v := finished.Int64
		r.FinishedAt = &v
	}
	return &r, nil
}

// GetRun returns a run by id.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM painting_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// all runs.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM painting_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListFrames returns a run's frames ordered by frame id.
func (s *RunStore) ListFrames(runID string) ([]*FrameRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, frame_id, input_points, retained_points, duration_ns,
			camera_stats_json, overlap_stats_json, class_histogram_json,
			output_path, error, recorded_at
		FROM painting_frames WHERE run_id = ? ORDER BY frame_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var frames []*FrameRecord
	for rows.Next() {
		var (
			f                     FrameRecord
			cameras, overlaps, hh sql.NullString
		)
		if err := rows.Scan(&f.RunID, &f.FrameID, &f.InputPoints, &f.RetainedPoints, &f.DurationNS,
			&cameras, &overlaps, &hh, &f.OutputPath, &f.Error, &f.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		if err := unmarshalNullable(cameras, &f.Cameras); err != nil {
			return nil, fmt.Errorf("frame %s camera stats: %w", f.FrameID, err)
		}
		if err := unmarshalNullable(overlaps, &f.Overlaps); err != nil {
			return nil, fmt.Errorf("frame %s overlap stats: %w", f.FrameID, err)
		}
		if err := unmarshalNullable(hh, &f.ClassHistogram); err != nil {
			return nil, fmt.Errorf("frame %s class histogram: %w", f.FrameID, err)
		}
		frames = append(frames, &f)
	}
	return frames, rows.Err()
}

func unmarshalNullable(s sql.NullString, v interface{}) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
