package database_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-todo-api/internal/database"
	"github.com/redmonkez12/go-todo-api/internal/database/dbtest"
)

func insertUser(ctx context.Context, t *testing.T, q database.Querier, email, username string) error {
	t.Helper()
	now := time.Now().UTC()
	u := &database.User{
		Email:        email,
		Username:     username,
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := q.NewInsert().Model(u).Exec(ctx)
	return err
}

func countUsers(t *testing.T, db *bun.DB) int {
	t.Helper()
	n, err := db.NewSelect().Model((*database.User)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(ctx context.Context) error {
		return insertUser(ctx, t, database.QuerierFrom(ctx, db), "a@x.com", "alice")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countUsers(t, db))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := database.WithTx(ctx, db, func(ctx context.Context) error {
		require.NoError(t, insertUser(ctx, t, database.QuerierFrom(ctx, db), "a@x.com", "alice"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countUsers(t, db))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = database.WithTx(ctx, db, func(ctx context.Context) error {
			require.NoError(t, insertUser(ctx, t, database.QuerierFrom(ctx, db), "a@x.com", "alice"))
			panic("boom")
		})
	})
	assert.Equal(t, 0, countUsers(t, db))
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := database.WithTx(ctx, db, func(ctx context.Context) error {
		inner := database.WithTx(ctx, db, func(ctx context.Context) error {
			return insertUser(ctx, t, database.QuerierFrom(ctx, db), "a@x.com", "alice")
		})
		require.NoError(t, inner)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countUsers(t, db))
}

func TestUniqueViolation(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	require.NoError(t, insertUser(ctx, t, db, "a@x.com", "alice"))

	detail, ok := database.UniqueViolation(insertUser(ctx, t, db, "a@x.com", "bob"))
	assert.True(t, ok)
	assert.Contains(t, detail, "email")

	detail, ok = database.UniqueViolation(insertUser(ctx, t, db, "b@x.com", "alice"))
	assert.True(t, ok)
	assert.Contains(t, detail, "username")

	_, ok = database.UniqueViolation(errors.New("something else"))
	assert.False(t, ok)
	_, ok = database.UniqueViolation(nil)
	assert.False(t, ok)
}

func TestSession_PinsConnection(t *testing.T) {
	db := dbtest.New(t)

	var got database.Querier
	h := database.Session(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = database.QuerierFrom(r.Context(), db)
		require.NoError(t, insertUser(r.Context(), t, got, "a@x.com", "alice"))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	_, isConn := got.(bun.Conn)
	assert.True(t, isConn)
	assert.Equal(t, 1, countUsers(t, db))
}

func TestQuerierFrom_DefaultsToPool(t *testing.T) {
	db := dbtest.New(t)
	_, isDB := database.QuerierFrom(context.Background(), db).(*bun.DB)
	assert.True(t, isDB)
}
