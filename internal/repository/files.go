package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mide-olaore/watertrack/internal/common"
)

// UploadFile is the duplicate-detection record for one content hash.
type UploadFile struct {
	FileHash        string     `json:"file_hash"`
	OriginalName    string     `json:"original_name"`
	NormalizedPath  string     `json:"normalized_path,omitempty"`
	FirstUploadedAt time.Time  `json:"first_uploaded_at"`
	LastUploadedAt  time.Time  `json:"last_uploaded_at"`
	UploadCount     int        `json:"upload_count"`
}

// UploadFileRepository tracks uploaded files by content hash.
type UploadFileRepository interface {
	GetByHash(ctx context.Context, fileHash string) (*UploadFile, error)
	// UpsertByHash records an upload; the bool reports deduplication.
	UpsertByHash(ctx context.Context, fileHash, originalName, normalizedPath string, uploadedAt time.Time) (*UploadFile, bool, error)
}

type uploadFileRepo struct {
	store *Store
}

// NewUploadFileRepository returns the store-backed UploadFileRepository.
func NewUploadFileRepository(store *Store) UploadFileRepository {
	return &uploadFileRepo{store: store}
}

func (r *uploadFileRepo) GetByHash(ctx context.Context, fileHash string) (*UploadFile, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.rebind(
		`SELECT file_hash, original_name, normalized_path, first_uploaded_at, last_uploaded_at, upload_count
		 FROM upload_files WHERE file_hash = ?`), fileHash)

	var (
		rec            UploadFile
		normalizedPath sql.NullString
		first, last    string
	)
	err := row.Scan(&rec.FileHash, &rec.OriginalName, &normalizedPath, &first, &last, &rec.UploadCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("FILE_NOT_FOUND", fileHash, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "query upload file")
	}
	rec.NormalizedPath = normalizedPath.String
	if t, terr := time.Parse(timeLayout, first); terr == nil {
		rec.FirstUploadedAt = t
	}
	if t, terr := time.Parse(timeLayout, last); terr == nil {
		rec.LastUploadedAt = t
	}
	return &rec, nil
}

func (r *uploadFileRepo) UpsertByHash(ctx context.Context, fileHash, originalName, normalizedPath string, uploadedAt time.Time) (*UploadFile, bool, error) {
	if existing, err := r.GetByHash(ctx, fileHash); err == nil {
		_, uerr := r.store.db.ExecContext(ctx, r.store.rebind(
			`UPDATE upload_files SET last_uploaded_at = ?, upload_count = upload_count + 1 WHERE file_hash = ?`),
			formatTime(uploadedAt), fileHash)
		if uerr != nil {
			r.store.logger.Error("failed to touch upload file", "file_hash", fileHash, "error", uerr)
		}
		return existing, true, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	_, err := r.store.db.ExecContext(ctx, r.store.rebind(
		`INSERT INTO upload_files (file_hash, original_name, normalized_path, first_uploaded_at, last_uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`),
		fileHash, originalName, nullable(normalizedPath), formatTime(uploadedAt), formatTime(uploadedAt))
	if err != nil {
		r.store.logger.Error("failed to create upload file record", "file_hash", fileHash, "error", err)
		return nil, false, common.WrapError(err, "insert upload file")
	}
	return &UploadFile{
		FileHash:        fileHash,
		OriginalName:    originalName,
		NormalizedPath:  normalizedPath,
		FirstUploadedAt: uploadedAt.UTC(),
		LastUploadedAt:  uploadedAt.UTC(),
		UploadCount:     1,
	}, false, nil
}
