// Package interfaces collects compile-time checks that the concrete
// repositories and services satisfy the interfaces their consumers declare.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - BookStore: books, read tracking and per-book stats (internal/http/stores.go)
//   - CommentStore: threaded comments and likes (internal/http/stores.go)
//   - RatingStore: one rating per reader and book (internal/http/stores.go)
//   - ViewStore: read counts for the admin reports (internal/http/stores.go)
//   - AuditReader: paginated audit events (internal/http/stores.go)
//
// ## Media Interfaces
//
//   - media.Store: cover persistence, local disk or S3 (internal/media/media.go)
//   - tasks.ImageFetcher: downloads linked covers (internal/tasks/mirror_cover.go)
//
// ## Background Work Interfaces
//
//   - TaskQueue: enqueue and inspect tasks (internal/http/config.go)
//   - JobRunner: list and trigger maintenance jobs (internal/http/config.go)
//   - CoverBooks, AuditEventCleaner, TokenPurger: what the task processors
//     need from storage (internal/tasks/)
//
// # Adding a New Media Backend
//
//  1. Implement media.Store in internal/media/
//
//     type GCSStore struct {
//     bucket *storage.BucketHandle
//     }
//
//     func (s *GCSStore) Save(ctx context.Context, key string, body io.Reader, contentType string) error
//     func (s *GCSStore) Delete(ctx context.Context, key string) error
//     func (s *GCSStore) URL(key string) string
//
//  2. Select it in media.NewStore and add a check to checks.go
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
