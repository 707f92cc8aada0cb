package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const videoColumns = "id, bucket_id, file_id, duration, format, width, height, aspect_ratio, video_format, video_format_profile, video_frame_rate, video_frame_rate_mode, video_bit_rate, audio_format, audio_sample_rate, audio_bit_rate, size, preview_id"

// CreateVideo inserts a video record. An empty id is generated.
func (s *Store) CreateVideo(ctx context.Context, video *Video) error {
	if video == nil {
		return errors.New("video is nil")
	}
	if video.ID == "" {
		video.ID = newID()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID,
		nullableString(video.BucketID),
		nullableString(video.FileID),
		video.Duration,
		nullableString(video.Format),
		video.Width,
		video.Height,
		nullableString(video.AspectRatio),
		nullableString(video.VideoFormat),
		nullableString(video.VideoFormatProfile),
		nullableString(video.VideoFrameRate),
		nullableString(video.VideoFrameRateMode),
		video.VideoBitRate,
		nullableString(video.AudioFormat),
		nullableString(video.AudioSampleRate),
		video.AudioBitRate,
		video.Size,
		nullableString(video.PreviewID),
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// GetVideo fetches a video by id.
func (s *Store) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// PatchVideo applies a partial update: only fields the patch sets are
// written, so repeated probes never clear populated metadata.
func (s *Store) PatchVideo(ctx context.Context, id string, patch VideoPatch) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Duration != nil {
		add("duration", *patch.Duration)
	}
	if patch.Format != nil {
		add("format", *patch.Format)
	}
	if patch.Width != nil {
		add("width", *patch.Width)
	}
	if patch.Height != nil {
		add("height", *patch.Height)
	}
	if patch.AspectRatio != nil {
		add("aspect_ratio", *patch.AspectRatio)
	}
	if patch.VideoFormat != nil {
		add("video_format", *patch.VideoFormat)
	}
	if patch.VideoFormatProfile != nil {
		add("video_format_profile", *patch.VideoFormatProfile)
	}
	if patch.VideoFrameRate != nil {
		add("video_frame_rate", *patch.VideoFrameRate)
	}
	if patch.VideoFrameRateMode != nil {
		add("video_frame_rate_mode", *patch.VideoFrameRateMode)
	}
	if patch.VideoBitRate != nil {
		add("video_bit_rate", *patch.VideoBitRate)
	}
	if patch.AudioFormat != nil {
		add("audio_format", *patch.AudioFormat)
	}
	if patch.AudioSampleRate != nil {
		add("audio_sample_rate", *patch.AudioSampleRate)
	}
	if patch.AudioBitRate != nil {
		add("audio_bit_rate", *patch.AudioBitRate)
	}
	if patch.PreviewID != nil {
		add("preview_id", *patch.PreviewID)
	}

	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := s.db.ExecContext(ctx, `UPDATE videos SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("patch video: %w", err)
	}
	return nil
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id            string
		bucketID      sql.NullString
		fileID        sql.NullString
		duration      int64
		format        sql.NullString
		width         int
		height        int
		aspectRatio   sql.NullString
		vFormat       sql.NullString
		vProfile      sql.NullString
		vFrameRate    sql.NullString
		vFrameMode    sql.NullString
		vBitRate      int
		aFormat       sql.NullString
		aSampleRate   sql.NullString
		aBitRate      int
		size          int64
		previewID     sql.NullString
	)
	if err := scanner.Scan(
		&id, &bucketID, &fileID, &duration, &format, &width, &height, &aspectRatio,
		&vFormat, &vProfile, &vFrameRate, &vFrameMode, &vBitRate,
		&aFormat, &aSampleRate, &aBitRate, &size, &previewID,
	); err != nil {
		return nil, err
	}
	return &Video{
		ID:                 id,
		BucketID:           bucketID.String,
		FileID:             fileID.String,
		Duration:           duration,
		Format:             format.String,
		Width:              width,
		Height:             height,
		AspectRatio:        aspectRatio.String,
		VideoFormat:        vFormat.String,
		VideoFormatProfile: vProfile.String,
		VideoFrameRate:     vFrameRate.String,
		VideoFrameRateMode: vFrameMode.String,
		VideoBitRate:       vBitRate,
		AudioFormat:        aFormat.String,
		AudioSampleRate:    aSampleRate.String,
		AudioBitRate:       aBitRate,
		Size:               size,
		PreviewID:          previewID.String,
	}, nil
}
