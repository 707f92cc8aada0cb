package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const renditionColumns = "id, video_id, profile_id, name, status, progress, started_at, ended_at, output, path, metadata, target_duration, width, height, video_bit_rate, audio_bit_rate"

// CreateRendition inserts a rendition row at the start of a job.
func (s *Store) CreateRendition(ctx context.Context, r *Rendition) error {
	if r == nil {
		return errors.New("rendition is nil")
	}
	if r.ID == "" {
		r.ID = newID()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO renditions (`+renditionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.VideoID,
		nullableString(r.ProfileID),
		nullableString(r.Name),
		r.Status,
		r.Progress,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(r.EndedAt),
		nullableString(r.Output),
		nullableString(r.Path),
		nullableString(r.Metadata),
		r.TargetDuration,
		r.Width,
		r.Height,
		r.VideoBitRate,
		r.AudioBitRate,
	)
	if err != nil {
		return fmt.Errorf("insert rendition: %w", err)
	}
	return nil
}

// UpdateRendition persists changes to an existing rendition.
func (s *Store) UpdateRendition(ctx context.Context, r *Rendition) error {
	if r == nil {
		return errors.New("rendition is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE renditions
         SET status = ?, progress = ?, ended_at = ?, path = ?, metadata = ?, target_duration = ?
         WHERE id = ?`,
		r.Status,
		r.Progress,
		nullableTime(r.EndedAt),
		nullableString(r.Path),
		nullableString(r.Metadata),
		r.TargetDuration,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update rendition: %w", err)
	}
	return nil
}

// GetRendition fetches a rendition by id.
func (s *Store) GetRendition(ctx context.Context, id string) (*Rendition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+renditionColumns+` FROM renditions WHERE id = ?`, id)
	rendition, err := scanRendition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rendition: %w", err)
	}
	return rendition, nil
}

// ListRenditions returns renditions ordered by start time, optionally
// filtered by video id.
func (s *Store) ListRenditions(ctx context.Context, videoID string) ([]*Rendition, error) {
	query := `SELECT ` + renditionColumns + ` FROM renditions`
	var args []any
	if videoID != "" {
		query += ` WHERE video_id = ?`
		args = append(args, videoID)
	}
	query += ` ORDER BY started_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list renditions: %w", err)
	}
	defer rows.Close()

	var renditions []*Rendition
	for rows.Next() {
		rendition, err := scanRendition(rows)
		if err != nil {
			return nil, err
		}
		renditions = append(renditions, rendition)
	}
	return renditions, rows.Err()
}

// CreateSegment appends a segment row. Segments are never updated.
func (s *Store) CreateSegment(ctx context.Context, segment *Segment) error {
	if segment == nil {
		return errors.New("segment is nil")
	}
	if segment.ID == "" {
		segment.ID = newID()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO rendition_segments (id, rendition_id, stream_id, file_name, path, duration, is_init)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		segment.ID,
		segment.RenditionID,
		segment.StreamID,
		segment.FileName,
		nullableString(segment.Path),
		segment.Duration,
		boolToInt(segment.IsInit),
	)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// ListSegments returns a rendition's segments in insertion order.
func (s *Store) ListSegments(ctx context.Context, renditionID string) ([]*Segment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, rendition_id, stream_id, file_name, path, duration, is_init
         FROM rendition_segments WHERE rendition_id = ? ORDER BY rowid`,
		renditionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		var (
			segment Segment
			path    sql.NullString
			isInit  int
		)
		if err := rows.Scan(&segment.ID, &segment.RenditionID, &segment.StreamID, &segment.FileName, &path, &segment.Duration, &isInit); err != nil {
			return nil, err
		}
		segment.Path = path.String
		segment.IsInit = isInit != 0
		segments = append(segments, &segment)
	}
	return segments, rows.Err()
}

func scanRendition(scanner interface{ Scan(dest ...any) error }) (*Rendition, error) {
	var (
		r          Rendition
		profileID  sql.NullString
		name       sql.NullString
		statusStr  string
		startedRaw sql.NullString
		endedRaw   sql.NullString
		output     sql.NullString
		path       sql.NullString
		metadata   sql.NullString
	)
	if err := scanner.Scan(
		&r.ID, &r.VideoID, &profileID, &name, &statusStr, &r.Progress,
		&startedRaw, &endedRaw, &output, &path, &metadata, &r.TargetDuration,
		&r.Width, &r.Height, &r.VideoBitRate, &r.AudioBitRate,
	); err != nil {
		return nil, err
	}
	r.ProfileID = profileID.String
	r.Name = name.String
	r.Status = Status(statusStr)
	r.Output = output.String
	r.Path = path.String
	r.Metadata = metadata.String
	if started, err := parseTimeString(startedRaw.String); err == nil {
		r.StartedAt = started
	}
	if endedRaw.Valid {
		if ended, err := parseTimeString(endedRaw.String); err == nil {
			r.EndedAt = &ended
		}
	}
	return &r, nil
}
