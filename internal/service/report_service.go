package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/spec-kit/reporting-service/internal/domain"
	"github.com/spec-kit/reporting-service/internal/repository"
)

const usersExportLimit = 5000

// ObjectUploader is the slice of the object store the report service needs.
type ObjectUploader interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (int64, error)
	Bucket() string
}

// ReportResult identifies the stored artifact of a completed export.
type ReportResult struct {
	FileID    string `json:"fileId"`
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"objectKey"`
}

// ReportService generates report artifacts and records them.
type ReportService struct {
	users    repository.UserRepository
	files    repository.FileRepository
	uploader ObjectUploader
}

// NewReportService builds the service.
func NewReportService(users repository.UserRepository, files repository.FileRepository, uploader ObjectUploader) *ReportService {
	return &ReportService{users: users, files: files, uploader: uploader}
}

// ExportUsersCSV writes the newest users to a CSV object and records a
// file_objects row pointing at it.
func (s *ReportService) ExportUsersCSV(ctx context.Context) (*ReportResult, error) {
	users, err := s.users.ListNewest(ctx, usersExportLimit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	data, err := usersCSV(users)
	if err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}

	objectKey := fmt.Sprintf("reports/users/users-%d.csv", time.Now().UnixMilli())
	if _, err := s.uploader.Put(ctx, objectKey, data, "text/csv"); err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}

	file := &domain.FileObject{
		Bucket:    s.uploader.Bucket(),
		ObjectKey: objectKey,
		MimeType:  "text/csv",
		Size:      int64(len(data)),
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("record file: %w", err)
	}

	return &ReportResult{FileID: file.ID, Bucket: file.Bucket, ObjectKey: file.ObjectKey}, nil
}

func usersCSV(users []domain.User) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "email", "role", "status", "createdAt"}); err != nil {
		return nil, err
	}
	for _, user := range users {
		record := []string{
			user.ID,
			user.Email,
			string(user.Role),
			string(user.Status),
			user.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
