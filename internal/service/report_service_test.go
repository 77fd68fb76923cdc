package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/reporting-service/internal/domain"
)

type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Create(ctx context.Context, file *domain.FileObject) error {
	args := m.Called(ctx, file)
	file.ID = "file-1"
	return args.Error(0)
}

func (m *MockFileRepository) GetByID(ctx context.Context, id string) (*domain.FileObject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FileObject), args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Put(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	args := m.Called(ctx, key, data, contentType)
	return int64(len(data)), args.Error(1)
}

func (m *MockUploader) Bucket() string {
	return "reports"
}

func TestExportUsersCSV(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	users := new(MockUserRepository)
	users.On("ListNewest", mock.Anything, usersExportLimit).Return([]domain.User{
		{ID: "u1", Email: "a@example.com", Role: domain.RoleAdmin, Status: domain.UserStatusActive, CreatedAt: createdAt},
		{ID: "u2", Email: "quote,me@example.com", Role: domain.RoleUser, Status: domain.UserStatusDisabled, CreatedAt: createdAt},
	}, nil)

	var uploadedKey string
	var uploaded []byte
	uploader := new(MockUploader)
	uploader.On("Put", mock.Anything, mock.Anything, mock.Anything, "text/csv").
		Run(func(args mock.Arguments) {
			uploadedKey = args.String(1)
			uploaded = args.Get(2).([]byte)
		}).
		Return(int64(0), nil)

	files := new(MockFileRepository)
	files.On("Create", mock.Anything, mock.MatchedBy(func(f *domain.FileObject) bool {
		return f.Bucket == "reports" && f.MimeType == "text/csv" && f.Size > 0
	})).Return(nil)

	svc := NewReportService(users, files, uploader)
	result, err := svc.ExportUsersCSV(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "file-1", result.FileID)
	assert.Equal(t, "reports", result.Bucket)
	assert.True(t, strings.HasPrefix(result.ObjectKey, "reports/users/users-"))
	assert.Equal(t, uploadedKey, result.ObjectKey)

	lines := strings.Split(strings.TrimSpace(string(uploaded)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,email,role,status,createdAt", lines[0])
	assert.Equal(t, "u1,a@example.com,ADMIN,ACTIVE,2026-03-14T09:30:00Z", lines[1])
	assert.Contains(t, lines[2], `"quote,me@example.com"`)

	files.AssertExpectations(t)
	uploader.AssertExpectations(t)
}

func TestExportUsersCSVUploadFailure(t *testing.T) {
	users := new(MockUserRepository)
	users.On("ListNewest", mock.Anything, usersExportLimit).Return([]domain.User{}, nil)

	uploader := new(MockUploader)
	uploader.On("Put", mock.Anything, mock.Anything, mock.Anything, "text/csv").
		Return(int64(0), assert.AnError)

	svc := NewReportService(users, new(MockFileRepository), uploader)
	_, err := svc.ExportUsersCSV(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
