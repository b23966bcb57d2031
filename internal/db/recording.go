package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sensor.watch/internal/telemetry"
)

// Recording is one persisted capture session: the samples a dashboard
// buffered between record start and record stop.
type Recording struct {
	ID          string    `json:"id"`
	Pipeline    string    `json:"pipeline"`
	StartedAt   time.Time `json:"started_at"`
	StoppedAt   time.Time `json:"stopped_at"`
	SampleCount int       `json:"sample_count"`
}

// Each pipeline stores into its own sample table, one column per channel in
// schema order. Timestamps are unix nanoseconds so reloaded records compare
// equal to what was flushed.
type sampleTable struct {
	insert   string
	query    string
	channels int
}

func tableFor(pipeline string) (sampleTable, error) {
	switch pipeline {
	case "imu":
		return sampleTable{
			insert: `INSERT INTO motion_samples (
				recording_id, seq, ts_unix_nanos,
				accel_x, accel_y, accel_z, gyro_x, gyro_y, gyro_z, roll, pitch
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			query: `SELECT seq, ts_unix_nanos,
				accel_x, accel_y, accel_z, gyro_x, gyro_y, gyro_z, roll, pitch
				FROM motion_samples WHERE recording_id = ? ORDER BY seq`,
			channels: 8,
		}, nil
	case "sonar":
		return sampleTable{
			insert: `INSERT INTO range_samples (
				recording_id, seq, ts_unix_nanos,
				front_cm, right_cm, left_cm, back_cm
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			query: `SELECT seq, ts_unix_nanos, front_cm, right_cm, left_cm, back_cm
				FROM range_samples WHERE recording_id = ? ORDER BY seq`,
			channels: 4,
		}, nil
	default:
		return sampleTable{}, fmt.Errorf("no sample table for pipeline %q", pipeline)
	}
}

// FlushRecording writes one recording row plus all its samples in a single
// transaction. Either everything lands or nothing does; a malformed record
// mid-batch rolls back the rows already written.
func (db *DB) FlushRecording(ctx context.Context, schema telemetry.Schema, records []telemetry.Record, started, stopped time.Time) (Recording, error) {
	table, err := tableFor(schema.Name)
	if err != nil {
		return Recording{}, err
	}
	if schema.Len() != table.channels {
		return Recording{}, fmt.Errorf("pipeline %q schema has %d channels, table holds %d", schema.Name, schema.Len(), table.channels)
	}

	rec := Recording{
		ID:          uuid.NewString(),
		Pipeline:    schema.Name,
		StartedAt:   started,
		StoppedAt:   stopped,
		SampleCount: len(records),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recordings (id, pipeline, started_unix_nanos, stopped_unix_nanos, sample_count)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Pipeline, rec.StartedAt.UnixNano(), rec.StoppedAt.UnixNano(), rec.SampleCount,
	); err != nil {
		return Recording{}, fmt.Errorf("failed to insert recording: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, table.insert)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if len(r.Values) != schema.Len() {
			return Recording{}, fmt.Errorf("sample %d has %d values, want %d", i, len(r.Values), schema.Len())
		}
		args := make([]interface{}, 0, schema.Len()+3)
		args = append(args, rec.ID, int64(r.Seq), r.Time.UnixNano())
		for j, v := range r.Values {
			if schema.Channels[j].Kind == telemetry.KindInt64 {
				args = append(args, int64(v))
			} else {
				args = append(args, v)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return Recording{}, fmt.Errorf("failed to insert sample %d: %w", r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Recording{}, fmt.Errorf("failed to commit recording: %w", err)
	}
	return rec, nil
}

// Recordings lists persisted recordings, newest first.
func (db *DB) Recordings(ctx context.Context) ([]Recording, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, pipeline, started_unix_nanos, stopped_unix_nanos, sample_count
		FROM recordings ORDER BY started_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []Recording
	for rows.Next() {
		var rec Recording
		var startedNS, stoppedNS int64
		if err := rows.Scan(&rec.ID, &rec.Pipeline, &startedNS, &stoppedNS, &rec.SampleCount); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(0, startedNS).UTC()
		rec.StoppedAt = time.Unix(0, stoppedNS).UTC()
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// RecordingSamples reloads the samples of a recording in seq order.
func (db *DB) RecordingSamples(ctx context.Context, rec Recording) ([]telemetry.Record, error) {
	table, err := tableFor(rec.Pipeline)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, table.query, rec.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []telemetry.Record
	for rows.Next() {
		var seq, ns int64
		values := make([]float64, table.channels)
		dest := make([]interface{}, 0, table.channels+2)
		dest = append(dest, &seq, &ns)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		records = append(records, telemetry.Record{
			Seq:    uint64(seq),
			Time:   time.Unix(0, ns).UTC(),
			Values: values,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
