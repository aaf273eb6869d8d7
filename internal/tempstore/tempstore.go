// Package tempstore hands out short-lived, presigned download URLs for
// files produced during a conversation (async CLI output files) so they
// can be shared with a platform without proxying
// bytes back through the gateway itself.
package tempstore

import "context"

// Service issues and revokes presigned URLs for objects it stores.
type Service interface {
	// Put uploads data under a generated key and returns a presigned GET
	// URL. Its lifetime is fixed by the implementation (72h for
	// S3Service); callers cannot set it.
	Put(ctx context.Context, filename string, data []byte, contentType string) (url string, key string, err error)

	// Delete removes the object. Nothing in the gateway calls it.
	Delete(ctx context.Context, key string) error
}
