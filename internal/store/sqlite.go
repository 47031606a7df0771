// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sua-org/titan-nvr/internal/core"

	_ "github.com/mattn/go-sqlite3" // driver SQLite
)

const schema = `
CREATE TABLE IF NOT EXISTS cameras (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	main_stream_url TEXT NOT NULL,
	sub_stream_url TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	recording_mode TEXT NOT NULL DEFAULT 'continuous',
	retention_days INTEGER NOT NULL DEFAULT 7,
	event_retention_days INTEGER NOT NULL DEFAULT 14,
	detect_width INTEGER NOT NULL DEFAULT 0,
	detect_height INTEGER NOT NULL DEFAULT 0,
	detect_fps INTEGER NOT NULL DEFAULT 0,
	objects TEXT NOT NULL DEFAULT '[]',
	zones TEXT NOT NULL DEFAULT '{}',
	location TEXT NOT NULL DEFAULT '',
	schedule TEXT NOT NULL DEFAULT '[]'
);
`

// SQLiteStore implementa Store sobre SQLite. Objects, zones e schedule
// vão como colunas JSON: o store trata esses campos como opacos.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite abre (ou cria) o banco no caminho dado. ":memory:" funciona
// para testes.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

const cameraColumns = `id, name, main_stream_url, sub_stream_url, is_active,
	recording_mode, retention_days, event_retention_days,
	detect_width, detect_height, detect_fps, objects, zones, location, schedule`

func (s *SQLiteStore) ListCameras(ctx context.Context) ([]core.CameraRecord, error) {
	return s.list(ctx, "SELECT "+cameraColumns+" FROM cameras ORDER BY id")
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]core.CameraRecord, error) {
	return s.list(ctx, "SELECT "+cameraColumns+" FROM cameras WHERE is_active = 1 ORDER BY id")
}

func (s *SQLiteStore) list(ctx context.Context, query string) ([]core.CameraRecord, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var out []core.CameraRecord
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cam)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetCamera(ctx context.Context, id int64) (core.CameraRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+cameraColumns+" FROM cameras WHERE id = ?", id)
	cam, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CameraRecord{}, ErrNotFound
	}
	return cam, err
}

func (s *SQLiteStore) CreateCamera(ctx context.Context, cam core.CameraRecord) (core.CameraRecord, error) {
	if cam.RecordingMode == "" {
		cam.RecordingMode = core.ModeContinuous
	}
	objects, zones, schedule, err := encodeOpaque(cam)
	if err != nil {
		return core.CameraRecord{}, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO cameras
		(name, main_stream_url, sub_stream_url, is_active, recording_mode,
		 retention_days, event_retention_days, detect_width, detect_height,
		 detect_fps, objects, zones, location, schedule)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cam.Name, cam.MainStreamURL, cam.SubStreamURL, cam.IsActive,
		string(cam.RecordingMode), cam.RetentionDays, cam.EventRetentionDays,
		cam.DetectWidth, cam.DetectHeight, cam.DetectFPS,
		objects, zones, cam.Location, schedule)
	if err != nil {
		return core.CameraRecord{}, fmt.Errorf("insert camera: %w", err)
	}

	cam.ID, err = res.LastInsertId()
	if err != nil {
		return core.CameraRecord{}, fmt.Errorf("camera id: %w", err)
	}
	return cam, nil
}

func (s *SQLiteStore) UpdateCamera(ctx context.Context, cam core.CameraRecord) error {
	objects, zones, schedule, err := encodeOpaque(cam)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE cameras SET
		name = ?, main_stream_url = ?, sub_stream_url = ?, is_active = ?,
		recording_mode = ?, retention_days = ?, event_retention_days = ?,
		detect_width = ?, detect_height = ?, detect_fps = ?,
		objects = ?, zones = ?, location = ?, schedule = ?
		WHERE id = ?`,
		cam.Name, cam.MainStreamURL, cam.SubStreamURL, cam.IsActive,
		string(cam.RecordingMode), cam.RetentionDays, cam.EventRetentionDays,
		cam.DetectWidth, cam.DetectHeight, cam.DetectFPS,
		objects, zones, cam.Location, schedule, cam.ID)
	if err != nil {
		return fmt.Errorf("update camera: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteCamera(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cameras WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete camera: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) SetRecordingMode(ctx context.Context, id int64, mode core.RecordingMode) error {
	res, err := s.db.ExecContext(ctx, "UPDATE cameras SET recording_mode = ? WHERE id = ?", string(mode), id)
	if err != nil {
		return fmt.Errorf("set recording mode: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeOpaque(cam core.CameraRecord) (objects, zones, schedule string, err error) {
	ob, err := json.Marshal(orEmptySlice(cam.Objects))
	if err != nil {
		return "", "", "", fmt.Errorf("encode objects: %w", err)
	}
	zn, err := json.Marshal(orEmptyZones(cam.Zones))
	if err != nil {
		return "", "", "", fmt.Errorf("encode zones: %w", err)
	}
	sc, err := json.Marshal(orEmptySchedule(cam.Schedule))
	if err != nil {
		return "", "", "", fmt.Errorf("encode schedule: %w", err)
	}
	return string(ob), string(zn), string(sc), nil
}

func orEmptySlice(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func orEmptyZones(v map[string]core.ZoneConfig) map[string]core.ZoneConfig {
	if v == nil {
		return map[string]core.ZoneConfig{}
	}
	return v
}

func orEmptySchedule(v []core.ScheduleSlot) []core.ScheduleSlot {
	if v == nil {
		return []core.ScheduleSlot{}
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCamera(row rowScanner) (core.CameraRecord, error) {
	var (
		cam                     core.CameraRecord
		mode                    string
		objects, zones, schedul string
	)
	err := row.Scan(&cam.ID, &cam.Name, &cam.MainStreamURL, &cam.SubStreamURL,
		&cam.IsActive, &mode, &cam.RetentionDays, &cam.EventRetentionDays,
		&cam.DetectWidth, &cam.DetectHeight, &cam.DetectFPS,
		&objects, &zones, &cam.Location, &schedul)
	if err != nil {
		return core.CameraRecord{}, err
	}

	cam.RecordingMode, err = core.ParseRecordingMode(mode)
	if err != nil {
		return core.CameraRecord{}, fmt.Errorf("camera %d: %w", cam.ID, err)
	}
	if err := json.Unmarshal([]byte(objects), &cam.Objects); err != nil {
		return core.CameraRecord{}, fmt.Errorf("camera %d objects: %w", cam.ID, err)
	}
	if err := json.Unmarshal([]byte(zones), &cam.Zones); err != nil {
		return core.CameraRecord{}, fmt.Errorf("camera %d zones: %w", cam.ID, err)
	}
	if err := json.Unmarshal([]byte(schedul), &cam.Schedule); err != nil {
		return core.CameraRecord{}, fmt.Errorf("camera %d schedule: %w", cam.ID, err)
	}
	return cam, nil
}
