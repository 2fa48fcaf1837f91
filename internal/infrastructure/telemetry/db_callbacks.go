package telemetry

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type registerFunc func(name string, fn func(*gorm.DB)) error

type hookPoint struct {
	op     string
	before registerFunc
	after  registerFunc
}

func hookPoints(db *gorm.DB) []hookPoint {
	cb := db.Callback()
	return []hookPoint{
		{"create",
			func(n string, fn func(*gorm.DB)) error { return cb.Create().Before("gorm:create").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Create().After("gorm:create").Register(n, fn) }},
		{"query",
			func(n string, fn func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Query().After("gorm:query").Register(n, fn) }},
		{"update",
			func(n string, fn func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Update().After("gorm:update").Register(n, fn) }},
		{"delete",
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().After("gorm:delete").Register(n, fn) }},
		{"row",
			func(n string, fn func(*gorm.DB)) error { return cb.Row().Before("gorm:row").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Row().After("gorm:row").Register(n, fn) }},
		{"raw",
			func(n string, fn func(*gorm.DB)) error { return cb.Raw().Before("gorm:raw").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Raw().After("gorm:raw").Register(n, fn) }},
	}
}

// registerAround installs before and after hooks on every GORM processor.
// after receives the processor name (create, query, update, delete, row, raw).
func registerAround(db *gorm.DB, prefix string, before func(*gorm.DB), after func(op string, db *gorm.DB)) error {
	for _, hp := range hookPoints(db) {
		op := hp.op
		if err := hp.before(fmt.Sprintf("%s:before_%s", prefix, op), before); err != nil {
			return fmt.Errorf("register %s before %s: %w", prefix, op, err)
		}
		hook := func(db *gorm.DB) { after(op, db) }
		if err := hp.after(fmt.Sprintf("%s:after_%s", prefix, op), hook); err != nil {
			return fmt.Errorf("register %s after %s: %w", prefix, op, err)
		}
	}
	return nil
}

// stampStart returns a before hook recording the statement start under key
func stampStart(key any) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tx.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
}

// elapsed is the time since stampStart ran for this statement
func elapsed(tx *gorm.DB, key any) (time.Duration, bool) {
	if tx.Statement.Context == nil {
		return 0, false
	}
	start, ok := tx.Statement.Context.Value(key).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}
