package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/checkmarble/agent-eval-backend/utils"
)

// DocumentStore archives the source documents uploaded for generation. With an empty bucket url,
// documents are not kept.
type DocumentStore struct {
	bucketUrl string

	m      sync.Mutex
	bucket *blob.Bucket
}

func NewDocumentStore(bucketUrl string) *DocumentStore {
	return &DocumentStore{bucketUrl: bucketUrl}
}

func (s *DocumentStore) Enabled() bool {
	return s != nil && s.bucketUrl != ""
}

func (s *DocumentStore) openBucket(ctx context.Context) (*blob.Bucket, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.bucket != nil {
		return s.bucket, nil
	}

	bucket, err := blob.OpenBucket(ctx, s.bucketUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bucket %s", s.bucketUrl)
	}
	ok, err := bucket.IsAccessible(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check bucket accessibility %s", s.bucketUrl)
	} else if !ok {
		return nil, errors.Newf("bucket %s is not accessible", s.bucketUrl)
	}

	s.bucket = bucket
	return bucket, nil
}

// Store writes the document under the suite prefix and returns its key.
func (s *DocumentStore) Store(ctx context.Context, suiteId uuid.UUID, fileName, contentType string, data []byte) (string, error) {
	ctx, span := utils.StartSpan(ctx, "repositories.DocumentStore.Store",
		attribute.String("suite_id", suiteId.String()),
		attribute.Int("size", len(data)),
	)
	defer span.End()

	bucket, err := s.openBucket(ctx)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s/%s", suiteId, uuid.Must(uuid.NewV7()), fileName)
	err = bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=\"%s\"", fileName),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to write document %s", key)
	}
	return key, nil
}

func (s *DocumentStore) Close() error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.bucket == nil {
		return nil
	}
	return s.bucket.Close()
}
