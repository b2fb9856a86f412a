package database

import "gorm.io/gorm"

// ErrNotFound is returned by repositories when the requested row does
// not exist. It is gorm's sentinel so callers can match either name.
var ErrNotFound = gorm.ErrRecordNotFound
