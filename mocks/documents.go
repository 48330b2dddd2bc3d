package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type DocumentExtractor struct {
	mock.Mock
}

func (m *DocumentExtractor) DetectContentType(data []byte) string {
	return m.Called(data).String(0)
}

func (m *DocumentExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

type DocumentStore struct {
	mock.Mock
}

func (m *DocumentStore) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *DocumentStore) Store(ctx context.Context, suiteId uuid.UUID, fileName, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, suiteId, fileName, contentType, data)
	return args.String(0), args.Error(1)
}
