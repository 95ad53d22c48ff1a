// Package archive stores a raw HTML snapshot of every scraped page in
// object storage, keyed by URL. It is never authoritative: the catalogue
// row for a page is complete without it, so every failure here is logged
// and swallowed rather than surfaced to a caller deciding an ack.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/elodkocsis/tenebra/internal/config"
)

// Bucket holds raw HTML snapshots, one object per scraped URL.
const Bucket = "tenebra-html"

// Archive wraps a minio client scoped to Bucket.
type Archive struct {
	client *minio.Client
}

// New dials the object store and ensures Bucket exists.
func New(ctx context.Context, cfg config.MinIOConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	a := &Archive{client: client}
	exists, err := client.BucketExists(ctx, Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", Bucket, err)
		}
	}
	return a, nil
}

// Store writes body under Key(pageURL). Callers should log a returned
// error, not act on it: a missing snapshot never invalidates a page row.
func (a *Archive) Store(ctx context.Context, pageURL string, body []byte) error {
	_, err := a.client.PutObject(ctx, Bucket, Key(pageURL), bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "text/html; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", Key(pageURL), err)
	}
	return nil
}

// Key derives an object key from a page URL: host + path, with a hash
// suffix of the full URL to keep query-string variants from colliding.
func Key(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Sprintf("unknown/%s.html", sanitize(pageURL))
	}

	path := u.Path
	if path == "" || path == "/" {
		path = "/index"
	}
	path = strings.TrimSuffix(path, "/")

	h := sha256.Sum256([]byte(pageURL))
	return fmt.Sprintf("%s%s_%x.html", u.Host, path, h[:8])
}

func sanitize(s string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "?", "_", "&", "_", "=", "_")
	return r.Replace(s)
}
