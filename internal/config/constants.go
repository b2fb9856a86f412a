package config

// Default locations and limits
const (
	// DefaultDatabasePath is the default path for the SQLite database
	DefaultDatabasePath = "./bookshelf.db"

	// DefaultMediaRoot is where uploaded covers are written by the local media backend
	DefaultMediaRoot = "./media"

	// DefaultMediaURLPrefix is the URL prefix local media is served under
	DefaultMediaURLPrefix = "/media/"

	// DefaultMaxUploadBytes caps multipart cover uploads (10 MiB)
	DefaultMaxUploadBytes = 10 << 20
)

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Media backends
const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"
)
