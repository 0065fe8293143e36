// Package models holds the GORM rows behind the marketplace repositories.
//
// Domain types in internal/domain/marketplace carry no ORM tags; each model
// here converts with ToDomain and FromDomain, and repositories only ever
// hand domain values to callers. JSON columns (run accounts and errors,
// record images) use gorm.io/datatypes so the same models work on PostgreSQL
// and on the SQLite databases used in tests.
package models
