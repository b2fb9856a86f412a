// Package media stores uploaded book covers on local disk or in S3.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/theledlead/bookshelf/internal/config"
	"github.com/theledlead/bookshelf/internal/utils"
)

var (
	ErrEmptyImage      = errors.New("image is empty")
	ErrImageTooLarge   = errors.New("image exceeds the upload size limit")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrInvalidKey      = errors.New("invalid media key")
	ErrUnknownBackend  = errors.New("unknown media backend")
)

// CoverPrefix is the top-level directory all book covers live under.
const CoverPrefix = "book_covers"

// AllowedImageTypes lists the content types accepted as book covers.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Store persists media objects under slash-separated keys.
type Store interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Image is a validated cover image held in memory.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// ReadImage reads at most maxBytes from r and checks that the content is one
// of AllowedImageTypes. The type is sniffed from the bytes, never taken from
// the client.
func ReadImage(r io.Reader, maxBytes int64) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrImageTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), AllowedImageTypes...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	return &Image{
		Data:        data,
		ContentType: mtype.String(),
		Extension:   mtype.Extension(),
	}, nil
}

// CoverKey builds a fresh storage key for a book cover:
// book_covers/<title>/<name>_<id><ext>. Both parts are sanitised into single
// path segments; ext is used when the filename has no extension of its own.
// Every call returns a new key, so books sharing a title and filename never
// share a stored object.
func CoverKey(title, filename, ext string) string {
	return coverKey(title, filename, ext, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func coverKey(title, filename, ext, id string) string {
	stem, e := utils.SplitExtension(utils.SanitizeFilename(filename))
	if e == "" {
		e = ext
	}
	return path.Join(CoverPrefix, utils.SanitizeFilename(title), stem+"_"+id+e)
}

// checkKey rejects keys that are absolute or climb out of the store root.
func checkKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// escapeKey percent-encodes every segment of a key for use in a URL path.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// NewStore builds the store selected by cfg.Media.Backend.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Media.Backend {
	case "", config.MediaBackendLocal:
		return NewLocalStore(cfg.Media.Root, cfg.Media.URLPrefix)
	case config.MediaBackendS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Media.Backend)
	}
}
