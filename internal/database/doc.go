// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (SQLite or MySQL) and migrations
//	├── books/           # Book CRUD, listing statistics, read-records
//	├── comments/        # Threaded comments and likes
//	├── ratings/         # Atomic rating upsert and averages
//	├── views/           # Read-record aggregation for the admin reports
//	├── users/           # User accounts
//	└── audit/           # Audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./bookshelf.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	ratingsRepo := ratings.NewRepository(db.DB)
//
//	book, err := booksRepo.GetBook(123)
//	created, err := ratingsRepo.Upsert(userID, bookID, 4)
//
// # Cascades
//
// SQLite does not enforce foreign keys unless asked to, so every delete
// that must cascade removes dependent rows itself inside a transaction.
// The constraints declared on the entities still apply on MySQL.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Implement the required interface
//  5. Add compile-time interface check in internal/interfaces/checks.go
package database
