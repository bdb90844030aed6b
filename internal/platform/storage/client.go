package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const (
	defaultDownloadExpiry = 5 * time.Minute
	maxDownloadExpiry     = 15 * time.Minute
)

var (
	errNoSigner      = errors.New("storage: signer is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Client issues short lived download URLs for archived order assets.
type Client struct {
	signer Signer
	expiry time.Duration
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

func WithExpiry(expiry time.Duration) ClientOption {
	return func(c *Client) {
		if expiry > 0 {
			c.expiry = expiry
		}
	}
}

func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	client := &Client{signer: signer, expiry: defaultDownloadExpiry, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.expiry > maxDownloadExpiry {
		return nil, errExpiryTooLong
	}
	return client, nil
}

// SignedURL describes a generated download link.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// DownloadURL signs a V4 GET URL for a gs:// reference. The response is served inline with the
// object's file name.
func (c *Client) DownloadURL(ctx context.Context, ref string) (SignedURL, error) {
	if c == nil {
		return SignedURL{}, errNoSigner
	}
	obj, err := ParseObjectRef(ref, "")
	if err != nil {
		return SignedURL{}, err
	}

	expires := c.now().Add(c.expiry)
	name := obj.Object[strings.LastIndex(obj.Object, "/")+1:]
	query := url.Values{}
	query.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", name))
	query.Set("response-cache-control", "private, max-age=300")

	signed, err := gcs.SignedURL(obj.Bucket, obj.Object, &gcs.SignedURLOptions{
		GoogleAccessID:  c.signer.Email(),
		Method:          "GET",
		Expires:         expires,
		Scheme:          gcs.SigningSchemeV4,
		QueryParameters: query,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURL{URL: signed, ExpiresAt: expires}, nil
}
