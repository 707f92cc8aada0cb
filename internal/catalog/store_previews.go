package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const previewColumns = "id, video_id, type, name, path, second"

// FindPreview looks up a preview by its upsert key (videoId, type, name).
func (s *Store) FindPreview(ctx context.Context, videoID, previewType, name string) (*Preview, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+previewColumns+` FROM previews WHERE video_id = ? AND type = ? AND name = ?`,
		videoID, previewType, name,
	)
	preview, err := scanPreview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find preview: %w", err)
	}
	return preview, nil
}

// CreatePreview inserts a preview record.
func (s *Store) CreatePreview(ctx context.Context, preview *Preview) error {
	if preview == nil {
		return errors.New("preview is nil")
	}
	if preview.ID == "" {
		preview.ID = newID()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO previews (`+previewColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		preview.ID,
		preview.VideoID,
		preview.Type,
		preview.Name,
		nullableString(preview.Path),
		preview.Second,
	)
	if err != nil {
		return fmt.Errorf("insert preview: %w", err)
	}
	return nil
}

// UpdatePreview persists path and second changes on an existing preview.
func (s *Store) UpdatePreview(ctx context.Context, preview *Preview) error {
	if preview == nil {
		return errors.New("preview is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE previews SET path = ?, second = ? WHERE id = ?`,
		nullableString(preview.Path),
		preview.Second,
		preview.ID,
	)
	if err != nil {
		return fmt.Errorf("update preview: %w", err)
	}
	return nil
}

func scanPreview(scanner interface{ Scan(dest ...any) error }) (*Preview, error) {
	var (
		preview Preview
		path    sql.NullString
	)
	if err := scanner.Scan(&preview.ID, &preview.VideoID, &preview.Type, &preview.Name, &path, &preview.Second); err != nil {
		return nil, err
	}
	preview.Path = path.String
	return &preview, nil
}
