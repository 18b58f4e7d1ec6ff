package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-todo-api/internal/database"
	"github.com/redmonkez12/go-todo-api/internal/database/dbtest"
)

func TestGenerateOTP(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "unexpected character %q", c)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestOTPRepository_IssueReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	repo := NewOTPRepository(dbtest.New(t), 15*time.Minute)

	first, err := repo.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := repo.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	count, err := repo.db.NewSelect().
		Model((*database.OneTimeCode)(nil)).
		Where("email = ?", "alice@example.com").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	latest, err := repo.latest(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, second, latest.Code)
	assert.False(t, latest.Used)
	assert.WithinDuration(t, latest.CreatedAt.Add(15*time.Minute), latest.ExpiresAt, time.Second)

	if first != second {
		ok, err := repo.Check(ctx, "alice@example.com", first)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestOTPRepository_IssueKeepsOtherEmails(t *testing.T) {
	ctx := context.Background()
	repo := NewOTPRepository(dbtest.New(t), 15*time.Minute)

	bobCode, err := repo.Issue(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = repo.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	ok, err := repo.Check(ctx, "bob@example.com", bobCode)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPRepository_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewOTPRepository(dbtest.New(t), 15*time.Minute)

	code, err := repo.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	ok, err := repo.Consume(ctx, "alice@example.com", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Consume(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Check(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	latest, err := repo.latest(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, latest.Used)
}

func TestOTPRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewOTPRepository(dbtest.New(t), 15*time.Minute)

	code, err := repo.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	repo.now = func() time.Time { return time.Now().UTC().Add(14 * time.Minute) }
	ok, err := repo.Check(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	repo.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
	ok, err = repo.Check(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Consume(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewOTPRepository(dbtest.New(t), 15*time.Minute)

	issuedAt := time.Now().UTC()
	repo.now = func() time.Time { return issuedAt.Add(-time.Hour) }
	_, err := repo.Issue(ctx, "old@example.com")
	require.NoError(t, err)

	repo.now = func() time.Time { return issuedAt }
	fresh, err := repo.Issue(ctx, "new@example.com")
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := repo.Check(ctx, "new@example.com", fresh)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = repo.DeleteExpired(ctx, issuedAt)
	require.NoError(t, err)
	assert.Zero(t, n)
}
