package database

import (
	"context"
	"fmt"
	"net/http"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-todo-api/internal/httputil"
	"github.com/redmonkez12/go-todo-api/internal/logging"
)

// Querier is the part of bun shared by *bun.DB, bun.Conn and bun.Tx that
// repositories need.
type Querier interface {
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}

type contextKey int

const (
	connContextKey contextKey = iota
	txContextKey
)

// Session pins one pooled connection to each request for its whole lifetime.
// The connection is returned to the pool when the handler returns, whatever
// the outcome.
func Session(db *bun.DB) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := db.Conn(r.Context())
			if err != nil {
				logging.GetLoggerFromContext(r.Context()).Error("failed to acquire database connection", "error", err.Error())
				httputil.RespondInternalError(w)
				return
			}
			defer conn.Close()

			ctx := context.WithValue(r.Context(), connContextKey, conn)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// QuerierFrom returns the handle repositories should use for ctx: the active
// transaction, else the request connection, else the pool.
func QuerierFrom(ctx context.Context, db *bun.DB) Querier {
	if tx, ok := ctx.Value(txContextKey).(bun.Tx); ok {
		return tx
	}
	if conn, ok := ctx.Value(connContextKey).(bun.Conn); ok {
		return conn
	}
	return db
}

// WithTx runs fn inside a transaction carried by the context passed to fn.
// The transaction commits when fn returns nil and rolls back when it returns
// an error or panics. Nested calls join the outer transaction.
func WithTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txContextKey).(bun.Tx); ok {
		return fn(ctx)
	}

	var tx bun.Tx
	if conn, ok := ctx.Value(connContextKey).(bun.Conn); ok {
		tx, err = conn.BeginTx(ctx, nil)
	} else {
		tx, err = db.BeginTx(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cerr)
		}
	}()

	return fn(context.WithValue(ctx, txContextKey, tx))
}
