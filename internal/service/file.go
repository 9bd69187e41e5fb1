package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/blob"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/repository"
)

// DefaultMaxUploadBytes caps a single decoded upload.
const DefaultMaxUploadBytes = 10 << 20

// FileService stores uploaded bytes in the blob store and their metadata in
// the repository.
//
// ORDER OF OPERATIONS:
//  1. decode and validate everything that can be checked locally
//  2. check the target project is the caller's (no blob for a bad request)
//  3. blob.Put
//  4. CreateFile
//
// A failure in step 4 leaves an orphaned blob. Blobs are never garbage
// collected, so that is the accepted cost of not holding a transaction open
// across a network upload.
type FileService struct {
	files    repository.FileRepository
	projects repository.ProjectRepository
	blobs    blob.Store
	maxBytes int64
	logger   *slog.Logger
}

func NewFileService(
	files repository.FileRepository,
	projects repository.ProjectRepository,
	blobs blob.Store,
	maxBytes int64,
	logger *slog.Logger,
) *FileService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &FileService{
		files:    files,
		projects: projects,
		blobs:    blobs,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// UploadInput carries one base64-encoded file. DeclaredSize, when present,
// must equal the decoded length.
type UploadInput struct {
	Filename     string
	MimeType     string
	Base64Data   string
	DeclaredSize *int64
	ProjectID    *string
}

func (s *FileService) List(ctx context.Context, userID, projectID string) ([]model.FileRecord, error) {
	files, err := s.files.ListFiles(ctx, userID, strings.TrimSpace(projectID))
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return files, nil
}

func (s *FileService) Upload(ctx context.Context, userID string, in UploadInput) (*model.FileRecord, error) {
	filename, err := requireText("filename", in.Filename, MaxFilenameLength)
	if err != nil {
		return nil, err
	}

	data, err := s.decode(in.Base64Data)
	if err != nil {
		return nil, err
	}
	if in.DeclaredSize != nil && *in.DeclaredSize != int64(len(data)) {
		return nil, apperror.ValidationFailed("fileSize",
			fmt.Sprintf("declared size %d does not match uploaded size %d", *in.DeclaredSize, len(data)))
	}

	mimeType := strings.TrimSpace(in.MimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	projectID := trimOptional(in.ProjectID)
	if projectID != nil {
		if _, err := s.projects.GetProject(ctx, *projectID, userID); err != nil {
			return nil, err
		}
	}

	key := userID + "-files/" + xid.New().String() + "-" + blob.SafeFilename(filename)
	url, err := s.blobs.Put(ctx, key, data, mimeType)
	if err != nil {
		s.logger.Error("blob upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("blob store", err)
	}

	record := &model.FileRecord{
		UserID:    userID,
		ProjectID: projectID,
		Filename:  filename,
		MimeType:  mimeType,
		FileSize:  int64(len(data)),
		URL:       url,
		FileKey:   key,
	}
	if err := s.files.CreateFile(ctx, record); err != nil {
		s.logger.Error("failed to record uploaded file",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording file %s: %w", filename, err)
	}

	s.logger.Info("file uploaded",
		slog.String("id", record.ID),
		slog.Int64("size", record.FileSize),
		slog.String("mimeType", mimeType),
	)
	return record, nil
}

// decode accepts plain base64 (padded or not) and data URLs
// ("data:image/png;base64,....").
func (s *FileService) decode(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, apperror.ValidationFailed("base64Data", "file is empty")
	}

	// Reject oversized payloads before allocating the decoded buffer.
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxBytes+2 {
		return nil, s.tooLarge()
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, apperror.ValidationFailed("base64Data", "file data is not valid base64")
		}
	}
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("base64Data", "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, s.tooLarge()
	}
	return data, nil
}

func (s *FileService) tooLarge() error {
	return apperror.ValidationFailed("base64Data",
		fmt.Sprintf("file exceeds the %d byte upload limit", s.maxBytes))
}

// Delete removes the file record. The blob itself is left in place.
func (s *FileService) Delete(ctx context.Context, userID, id string) error {
	if err := s.files.DeleteFile(ctx, id, userID); err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}
	s.logger.Info("file deleted", slog.String("id", id))
	return nil
}
