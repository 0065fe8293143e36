package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type callbackContextKey string

// gormCallback is invoked after a statement with its SQL operation name
type gormCallback func(db *gorm.DB, operation string)

// registerGormCallbacks installs before/after hooks on every GORM processor.
// The before hook stamps the start time under startKey. When endPrefix is set
// the after hook runs ahead of the callback named endPrefix+kind, so that it
// still sees the span otelgorm is about to end.
func registerGormCallbacks(db *gorm.DB, prefix, endPrefix string, startKey callbackContextKey, after gormCallback) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, startKey, time.Now())
	}

	cb := db.Callback()
	steps := []struct {
		kind      string
		operation string
		before    func(name string, fn func(*gorm.DB)) error
		after     func(name, ahead string, fn func(*gorm.DB)) error
	}{
		{"create", "INSERT",
			func(n string, f func(*gorm.DB)) error { return cb.Create().Before("gorm:create").Register(n, f) },
			func(n, a string, f func(*gorm.DB)) error {
				c := cb.Create().After("gorm:create")
				if a != "" {
					c = c.Before(a)
				}
				return c.Register(n, f)
			}},
		{"query", "SELECT",
			func(n string, f func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, f) },
			func(n, a string, f func(*gorm.DB)) error {
				c := cb.Query().After("gorm:query")
				if a != "" {
					c = c.Before(a)
				}
				return c.Register(n, f)
			}},
		{"update", "UPDATE",
			func(n string, f func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, f) },
			func(n, a string, f func(*gorm.DB)) error {
				c := cb.Update().After("gorm:update")
				if a != "" {
					c = c.Before(a)
				}
				return c.Register(n, f)
			}},
		{"delete", "DELETE",
			func(n string, f func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, f) },
			func(n, a string, f func(*gorm.DB)) error {
				c := cb.Delete().After("gorm:delete")
				if a != "" {
					c = c.Before(a)
				}
				return c.Register(n, f)
			}},
		{"row", "",
			func(n string, f func(*gorm.DB)) error { return cb.Row().Before("gorm:row").Register(n, f) },
			func(n, a string, f func(*gorm.DB)) error {
				c := cb.Row().After("gorm:row")
				if a != "" {
					c = c.Before(a)
				}
				return c.Register(n, f)
			}},
		{"raw", "",
			func(n string, f func(*gorm.DB)) error { return cb.Raw().Before("gorm:raw").Register(n, f) },
			func(n, a string, f func(*gorm.DB)) error {
				c := cb.Raw().After("gorm:raw")
				if a != "" {
					c = c.Before(a)
				}
				return c.Register(n, f)
			}},
	}

	for _, s := range steps {
		operation := s.operation
		if err := s.before(prefix+":before_"+s.kind, before); err != nil {
			return err
		}

		ahead := ""
		if endPrefix != "" {
			ahead = endPrefix + s.kind
		}
		afterHook := func(db *gorm.DB) {
			op := operation
			if op == "" {
				op = detectOperationType(db.Statement.SQL.String())
			}
			after(db, op)
		}
		if err := s.after(prefix+":after_"+s.kind, ahead, afterHook); err != nil {
			return err
		}
	}
	return nil
}

// statementDuration returns the time since the before hook ran, or 0
func statementDuration(db *gorm.DB, startKey callbackContextKey) time.Duration {
	if db.Statement.Context == nil {
		return 0
	}
	if start, ok := db.Statement.Context.Value(startKey).(time.Time); ok {
		return time.Since(start)
	}
	return 0
}

// detectOperationType guesses the SQL operation of a raw statement
func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}
