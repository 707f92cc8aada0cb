package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const subtitleColumns = "id, video_id, bucket_id, file_id, name, code, status, path, target_duration"

// CreateSubtitle inserts a queued subtitle track.
func (s *Store) CreateSubtitle(ctx context.Context, subtitle *Subtitle) error {
	if subtitle == nil {
		return errors.New("subtitle is nil")
	}
	if subtitle.ID == "" {
		subtitle.ID = newID()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO subtitles (`+subtitleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subtitle.ID,
		subtitle.VideoID,
		nullableString(subtitle.BucketID),
		nullableString(subtitle.FileID),
		nullableString(subtitle.Name),
		nullableString(subtitle.Code),
		string(subtitle.Status),
		nullableString(subtitle.Path),
		subtitle.TargetDuration,
	)
	if err != nil {
		return fmt.Errorf("insert subtitle: %w", err)
	}
	return nil
}

// ClaimSubtitles atomically claims every unprocessed subtitle for a video by
// moving it from the empty status to started. The conditional update means a
// track claimed by a concurrent job is skipped rather than processed twice.
func (s *Store) ClaimSubtitles(ctx context.Context, videoID string) ([]*Subtitle, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+subtitleColumns+` FROM subtitles WHERE video_id = ? AND status = '' ORDER BY rowid`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("find unclaimed subtitles: %w", err)
	}
	defer rows.Close()

	var candidates []*Subtitle
	for rows.Next() {
		subtitle, err := scanSubtitle(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, subtitle)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimed []*Subtitle
	for _, subtitle := range candidates {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE subtitles SET status = ? WHERE id = ? AND status = ''`,
			StatusStarted,
			subtitle.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("claim subtitle %s: %w", subtitle.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim subtitle %s: %w", subtitle.ID, err)
		}
		if affected == 0 {
			continue // lost the race to another worker
		}
		subtitle.Status = StatusStarted
		claimed = append(claimed, subtitle)
	}
	return claimed, nil
}

// UpdateSubtitle persists status, path, and target duration changes.
func (s *Store) UpdateSubtitle(ctx context.Context, subtitle *Subtitle) error {
	if subtitle == nil {
		return errors.New("subtitle is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE subtitles SET status = ?, path = ?, target_duration = ? WHERE id = ?`,
		string(subtitle.Status),
		nullableString(subtitle.Path),
		subtitle.TargetDuration,
		subtitle.ID,
	)
	if err != nil {
		return fmt.Errorf("update subtitle: %w", err)
	}
	return nil
}

// GetSubtitle fetches a subtitle track by id.
func (s *Store) GetSubtitle(ctx context.Context, id string) (*Subtitle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subtitleColumns+` FROM subtitles WHERE id = ?`, id)
	subtitle, err := scanSubtitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subtitle: %w", err)
	}
	return subtitle, nil
}

// CreateSubtitleSegment appends a subtitle segment row.
func (s *Store) CreateSubtitleSegment(ctx context.Context, segment *SubtitleSegment) error {
	if segment == nil {
		return errors.New("subtitle segment is nil")
	}
	if segment.ID == "" {
		segment.ID = newID()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO subtitle_segments (id, subtitle_id, file_name, path, duration) VALUES (?, ?, ?, ?, ?)`,
		segment.ID,
		segment.SubtitleID,
		segment.FileName,
		nullableString(segment.Path),
		segment.Duration,
	)
	if err != nil {
		return fmt.Errorf("insert subtitle segment: %w", err)
	}
	return nil
}

// ListSubtitleSegments returns a subtitle's segments in insertion order.
func (s *Store) ListSubtitleSegments(ctx context.Context, subtitleID string) ([]*SubtitleSegment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, subtitle_id, file_name, path, duration FROM subtitle_segments WHERE subtitle_id = ? ORDER BY rowid`,
		subtitleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subtitle segments: %w", err)
	}
	defer rows.Close()

	var segments []*SubtitleSegment
	for rows.Next() {
		var (
			segment SubtitleSegment
			path    sql.NullString
		)
		if err := rows.Scan(&segment.ID, &segment.SubtitleID, &segment.FileName, &path, &segment.Duration); err != nil {
			return nil, err
		}
		segment.Path = path.String
		segments = append(segments, &segment)
	}
	return segments, rows.Err()
}

func scanSubtitle(scanner interface{ Scan(dest ...any) error }) (*Subtitle, error) {
	var (
		subtitle Subtitle
		bucketID sql.NullString
		fileID   sql.NullString
		name     sql.NullString
		code     sql.NullString
		status   string
		path     sql.NullString
	)
	if err := scanner.Scan(
		&subtitle.ID, &subtitle.VideoID, &bucketID, &fileID, &name, &code, &status, &path, &subtitle.TargetDuration,
	); err != nil {
		return nil, err
	}
	subtitle.BucketID = bucketID.String
	subtitle.FileID = fileID.String
	subtitle.Name = name.String
	subtitle.Code = code.String
	subtitle.Status = Status(status)
	subtitle.Path = path.String
	return &subtitle, nil
}
