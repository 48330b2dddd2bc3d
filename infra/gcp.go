package infra

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const gcpProjectIdKey = "project_id"

var gcpMetadataProjectIdUrl = "http://metadata.google.internal/computeMetadata/v1/project/project-id"

// The project does not change during the lifetime of the process
var projectIdCache = expirable.NewLRU[string, string](1, nil, 0)

// ResolveGcpProjectId returns the configured project, or asks the metadata server of the GCP
// environment the process runs in. An empty project is returned outside of GCP.
func ResolveGcpProjectId(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if projectId, ok := projectIdCache.Get(gcpProjectIdKey); ok {
		return projectId, nil
	}

	var projectId string
	err := retry.Do(
		func() error {
			var err error
			projectId, err = projectIdFromMetadataServer(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
		retry.Delay(100*time.Millisecond),
	)
	if err != nil {
		return "", errors.Wrap(err, "could not read the project id from the metadata server")
	}

	projectIdCache.Add(gcpProjectIdKey, projectId)
	return projectId, nil
}

func projectIdFromMetadataServer(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gcpMetadataProjectIdUrl, nil)
	if err != nil {
		return "", retry.Unrecoverable(err)
	}
	req.Header.Add("Metadata-Flavor", "Google")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		// not running on GCP
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("unexpected status code from the metadata server: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
