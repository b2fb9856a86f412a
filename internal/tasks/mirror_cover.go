package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/theledlead/bookshelf/internal/entities"
	"github.com/theledlead/bookshelf/internal/media"
)

// CoverBooks is the part of the books repository the mirror task needs.
type CoverBooks interface {
	GetBook(id uint) (*entities.Book, error)
	SetImagePath(id uint, path string) error
}

// ImageFetcher downloads a remote image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, rawURL string) (*media.Image, error)
}

// MirrorCoverTask copies a book's external cover URL into the media store.
type MirrorCoverTask struct {
	BookID uint   `json:"book_id"`
	URL    string `json:"url"`
}

// Config returns the queue configuration for cover mirroring tasks.
func (t MirrorCoverTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "mirror_cover",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// MirrorCoverProcessor creates a processor function for MirrorCoverTask.
// Books that were deleted, or whose link changed since the task was queued,
// are skipped without error.
func MirrorCoverProcessor(books CoverBooks, fetcher ImageFetcher, store media.Store) backlite.QueueProcessor[MirrorCoverTask] {
	return func(ctx context.Context, task MirrorCoverTask) error {
		if books == nil || fetcher == nil || store == nil {
			return fmt.Errorf("cover mirroring not configured")
		}

		book, err := books.GetBook(task.BookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				zap.L().Info("book gone, skipping cover mirror", zap.Uint("book_id", task.BookID))
				return nil
			}
			return fmt.Errorf("load book %d: %w", task.BookID, err)
		}
		if book.ImageURLLink != task.URL {
			zap.L().Info("cover link changed, skipping stale mirror", zap.Uint("book_id", task.BookID))
			return nil
		}

		img, err := fetcher.FetchImage(ctx, task.URL)
		if err != nil {
			return fmt.Errorf("fetch cover for book %d: %w", task.BookID, err)
		}

		key := media.CoverKey(book.Title, remoteFilename(task.URL), img.Extension)
		if err := store.Save(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
			return fmt.Errorf("store cover for book %d: %w", task.BookID, err)
		}
		if err := books.SetImagePath(book.ID, key); err != nil {
			if delErr := store.Delete(ctx, key); delErr != nil {
				zap.L().Warn("failed to remove unused cover", zap.String("key", key), zap.Error(delErr))
			}
			return fmt.Errorf("set cover for book %d: %w", task.BookID, err)
		}

		if book.ImagePath != "" && book.ImagePath != key {
			if err := store.Delete(ctx, book.ImagePath); err != nil {
				zap.L().Warn("failed to remove replaced cover", zap.String("key", book.ImagePath), zap.Error(err))
			}
		}

		zap.L().Info("mirrored cover",
			zap.Uint("book_id", book.ID),
			zap.String("key", key),
			zap.Int("bytes", len(img.Data)))
		return nil
	}
}

// remoteFilename picks a file name for a mirrored cover from its URL.
func remoteFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "cover"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "cover"
	}
	return name
}

// NewMirrorCoverQueue creates a backlite queue for cover mirroring tasks.
func NewMirrorCoverQueue(books CoverBooks, fetcher ImageFetcher, store media.Store) backlite.Queue {
	return backlite.NewQueue(MirrorCoverProcessor(books, fetcher, store))
}
