package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateBucket inserts a bucket record.
func (s *Store) CreateBucket(ctx context.Context, bucket *Bucket) error {
	if bucket == nil {
		return errors.New("bucket is nil")
	}
	if bucket.ID == "" {
		bucket.ID = newID()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO buckets (id, file_security, permissions) VALUES (?, ?, ?)`,
		bucket.ID,
		boolToInt(bucket.FileSecurity),
		encodeStrings(bucket.Permissions),
	)
	if err != nil {
		return fmt.Errorf("insert bucket: %w", err)
	}
	return nil
}

// GetBucket fetches a bucket by id.
func (s *Store) GetBucket(ctx context.Context, id string) (*Bucket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, file_security, permissions FROM buckets WHERE id = ?`, id)
	var (
		bucket       Bucket
		fileSecurity int
		permissions  sql.NullString
	)
	err := row.Scan(&bucket.ID, &fileSecurity, &permissions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bucket: %w", err)
	}
	bucket.FileSecurity = fileSecurity != 0
	bucket.Permissions = decodeStrings(permissions)
	return &bucket, nil
}

const fileColumns = "id, bucket_id, name, path, mime_type, size, cipher, cipher_version, iv_hex, tag_hex, algorithm, permissions"

// CreateFile inserts a file record.
func (s *Store) CreateFile(ctx context.Context, file *File) error {
	if file == nil {
		return errors.New("file is nil")
	}
	if file.ID == "" {
		file.ID = newID()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID,
		file.BucketID,
		nullableString(file.Name),
		file.Path,
		nullableString(file.MimeType),
		file.Size,
		nullableString(file.Cipher),
		nullableString(file.CipherVersion),
		nullableString(file.IVHex),
		nullableString(file.TagHex),
		nullableString(file.Algorithm),
		encodeStrings(file.Permissions),
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFile fetches a file record by id.
func (s *Store) GetFile(ctx context.Context, id string) (*File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	var (
		file          File
		name          sql.NullString
		mimeType      sql.NullString
		cipher        sql.NullString
		cipherVersion sql.NullString
		ivHex         sql.NullString
		tagHex        sql.NullString
		algorithm     sql.NullString
		permissions   sql.NullString
	)
	err := row.Scan(
		&file.ID, &file.BucketID, &name, &file.Path, &mimeType, &file.Size,
		&cipher, &cipherVersion, &ivHex, &tagHex, &algorithm, &permissions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	file.Name = name.String
	file.MimeType = mimeType.String
	file.Cipher = cipher.String
	file.CipherVersion = cipherVersion.String
	file.IVHex = ivHex.String
	file.TagHex = tagHex.String
	file.Algorithm = algorithm.String
	file.Permissions = decodeStrings(permissions)
	return &file, nil
}
