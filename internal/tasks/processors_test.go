package tasks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/theledlead/bookshelf/internal/entities"
	"github.com/theledlead/bookshelf/internal/media"
)

type fakeBooks struct {
	books map[uint]*entities.Book
}

func (f *fakeBooks) GetBook(id uint) (*entities.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBooks) SetImagePath(id uint, path string) error {
	b, ok := f.books[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.ImagePath = path
	return nil
}

type fakeFetcher struct {
	img   *media.Image
	err   error
	calls int
}

func (f *fakeFetcher) FetchImage(_ context.Context, _ string) (*media.Image, error) {
	f.calls++
	return f.img, f.err
}

type memStore struct {
	objects map[string][]byte
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) URL(key string) string {
	return "/media/" + key
}

func TestMirrorCoverProcessor(t *testing.T) {
	const link = "https://covers.example.com/images/dune.png?size=L"
	books := &fakeBooks{books: map[uint]*entities.Book{
		1: {ID: 1, Title: "Dune", ImageURLLink: link, ImagePath: "book_covers/Dune/old.jpg"},
	}}
	fetcher := &fakeFetcher{img: &media.Image{Data: []byte("png"), ContentType: "image/png", Extension: ".png"}}
	store := newMemStore()
	store.objects["book_covers/Dune/old.jpg"] = []byte("old")

	process := MirrorCoverProcessor(books, fetcher, store)
	require.NoError(t, process(context.Background(), MirrorCoverTask{BookID: 1, URL: link}))

	key := books.books[1].ImagePath
	assert.Regexp(t, `^book_covers/Dune/dune_[0-9a-f]+\.png$`, key)
	assert.Equal(t, []byte("png"), store.objects[key])
	assert.Equal(t, []string{"book_covers/Dune/old.jpg"}, store.deleted)
}

func TestMirrorCoverProcessor_SameTitleAndFilename(t *testing.T) {
	const link = "https://covers.example.com/dune.png"
	books := &fakeBooks{books: map[uint]*entities.Book{
		1: {ID: 1, Title: "Dune", ImageURLLink: link},
		2: {ID: 2, Title: "Dune", ImageURLLink: link},
	}}
	fetcher := &fakeFetcher{img: &media.Image{Data: []byte("png"), ContentType: "image/png", Extension: ".png"}}
	store := newMemStore()

	process := MirrorCoverProcessor(books, fetcher, store)
	require.NoError(t, process(context.Background(), MirrorCoverTask{BookID: 1, URL: link}))
	require.NoError(t, process(context.Background(), MirrorCoverTask{BookID: 2, URL: link}))

	first, second := books.books[1].ImagePath, books.books[2].ImagePath
	assert.NotEqual(t, first, second)
	assert.Contains(t, store.objects, first)
	assert.Contains(t, store.objects, second)
}

func TestMirrorCoverProcessor_SkipsStaleAndMissing(t *testing.T) {
	books := &fakeBooks{books: map[uint]*entities.Book{
		1: {ID: 1, Title: "Dune", ImageURLLink: "https://example.com/new.png"},
	}}
	fetcher := &fakeFetcher{}
	process := MirrorCoverProcessor(books, fetcher, newMemStore())

	assert.NoError(t, process(context.Background(), MirrorCoverTask{BookID: 1, URL: "https://example.com/old.png"}))
	assert.NoError(t, process(context.Background(), MirrorCoverTask{BookID: 99, URL: "https://example.com/x.png"}))
	assert.Zero(t, fetcher.calls)
}

func TestMirrorCoverProcessor_FetchErrorFailsTask(t *testing.T) {
	books := &fakeBooks{books: map[uint]*entities.Book{
		1: {ID: 1, Title: "Dune", ImageURLLink: "https://example.com/c.png"},
	}}
	fetcher := &fakeFetcher{err: media.ErrUnsupportedType}
	process := MirrorCoverProcessor(books, fetcher, newMemStore())

	err := process(context.Background(), MirrorCoverTask{BookID: 1, URL: "https://example.com/c.png"})
	assert.ErrorIs(t, err, media.ErrUnsupportedType)
	assert.Empty(t, books.books[1].ImagePath)
}

func TestRemoteFilename(t *testing.T) {
	assert.Equal(t, "dune.png", remoteFilename("https://example.com/a/dune.png?x=1"))
	assert.Equal(t, "cover", remoteFilename("https://example.com/"))
	assert.Equal(t, "cover", remoteFilename("https://example.com"))
	assert.Equal(t, "cover", remoteFilename("::not a url"))
}

type fakeCleaner struct {
	retention time.Duration
	err       error
}

func (f *fakeCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	f.retention = retention
	return 7, f.err
}

func TestCleanupAuditEventsProcessor(t *testing.T) {
	cleaner := &fakeCleaner{}
	process := CleanupAuditEventsProcessor(cleaner)

	require.NoError(t, process(context.Background(), CleanupAuditEventsTask{RetentionDays: 10}))
	assert.Equal(t, 10*24*time.Hour, cleaner.retention)

	require.NoError(t, process(context.Background(), CleanupAuditEventsTask{}))
	assert.Equal(t, 30*24*time.Hour, cleaner.retention, "zero falls back to 30 days")

	cleaner.err = errors.New("db down")
	assert.Error(t, process(context.Background(), CleanupAuditEventsTask{}))

	assert.Error(t, CleanupAuditEventsProcessor(nil)(context.Background(), CleanupAuditEventsTask{}))
}

type fakePurger struct {
	calls int
}

func (f *fakePurger) PurgeExpiredTokens() (int64, error) {
	f.calls++
	return 2, nil
}

func TestPurgeExpiredTokensProcessor(t *testing.T) {
	purger := &fakePurger{}
	require.NoError(t, PurgeExpiredTokensProcessor(purger)(context.Background(), PurgeExpiredTokensTask{}))
	assert.Equal(t, 1, purger.calls)
}
