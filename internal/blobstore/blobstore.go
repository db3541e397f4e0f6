// Package blobstore stores file payloads by path, independently of the
// record store. Backends: in-memory, S3 (aws-sdk-go-v2) and MinIO.
package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("drivesync-blobstore")

// Store puts and deletes payloads. Put returns the URL recorded in file
// metadata; PathFromURL maps it back to the storage path.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
	PathFromURL(rawURL string) (string, error)
}

// objectURL joins base, bucket and an object path, escaping each path
// segment.
func objectURL(base, bucket, path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.Join(segs, "/")
}

// objectPath reverses objectURL.
func objectPath(base, bucket, rawURL string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/" + bucket + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", fmt.Errorf("%w: url %q is not under %q", common.ErrorValidation, rawURL, prefix)
	}
	p, err := url.PathUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if p == "" {
		return "", fmt.Errorf("%w: url %q has no object path", common.ErrorValidation, rawURL)
	}
	return p, nil
}
