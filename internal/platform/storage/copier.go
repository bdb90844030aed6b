package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// Copier provides object copy operations between Cloud Storage locations.
type Copier struct {
	client *gcs.Client
}

func NewCopier(client *gcs.Client) (*Copier, error) {
	if client == nil {
		return nil, errors.New("storage copier: client is required")
	}
	return &Copier{client: client}, nil
}

// CopyObject copies src to dst. Copying an object onto itself is a no-op.
func (c *Copier) CopyObject(ctx context.Context, src, dst ObjectRef) error {
	if c == nil || c.client == nil {
		return errors.New("storage copier: client is not initialised")
	}
	if src == dst {
		return nil
	}
	_, err := c.client.Bucket(dst.Bucket).Object(dst.Object).CopierFrom(c.client.Bucket(src.Bucket).Object(src.Object)).Run(ctx)
	return err
}

type objectCopier interface {
	CopyObject(ctx context.Context, src, dst ObjectRef) error
}

// Archiver moves shopper uploaded personalization images into the per-order archive so they
// outlive the upload bucket's lifecycle rules.
type Archiver struct {
	copier        objectCopier
	uploadsBucket string
	ordersBucket  string
}

// NewArchiver builds an Archiver. Bare refs are resolved against uploadsBucket.
func NewArchiver(copier objectCopier, uploadsBucket, ordersBucket string) (*Archiver, error) {
	if copier == nil {
		return nil, errors.New("storage archiver: copier is required")
	}
	ordersBucket = strings.TrimSpace(ordersBucket)
	if ordersBucket == "" {
		return nil, errors.New("storage archiver: orders bucket is required")
	}
	return &Archiver{copier: copier, uploadsBucket: strings.TrimSpace(uploadsBucket), ordersBucket: ordersBucket}, nil
}

// ArchivePersonalization copies each non-empty ref and returns the archived refs in the same
// positions. Empty refs stay empty. The first failure aborts the archive.
func (a *Archiver) ArchivePersonalization(ctx context.Context, orderID string, refs []string) ([]string, error) {
	out := make([]string, len(refs))
	for i, raw := range refs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		src, err := ParseObjectRef(raw, a.uploadsBucket)
		if err != nil {
			return nil, err
		}
		object, err := PersonalizationPath(orderID, i, src.Object)
		if err != nil {
			return nil, err
		}
		dst := ObjectRef{Bucket: a.ordersBucket, Object: object}
		if src.Bucket == dst.Bucket && strings.HasPrefix(src.Object, "orders/") {
			out[i] = src.String()
			continue
		}
		if err := a.copier.CopyObject(ctx, src, dst); err != nil {
			return nil, fmt.Errorf("storage archiver: copy %s: %w", src, err)
		}
		out[i] = dst.String()
	}
	return out, nil
}
