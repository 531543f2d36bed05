package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDBError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, MapDBError(nil))
	})

	t.Run("context errors pass through", func(t *testing.T) {
		assert.ErrorIs(t, MapDBError(context.DeadlineExceeded), context.DeadlineExceeded)
		assert.ErrorIs(t, MapDBError(context.Canceled), context.Canceled)
	})

	t.Run("no rows becomes not found", func(t *testing.T) {
		assert.True(t, IsNotFound(MapDBError(pgx.ErrNoRows)))
		assert.True(t, IsNotFound(MapDBError(sql.ErrNoRows)))
	})

	t.Run("unique violation becomes conflict", func(t *testing.T) {
		err := MapDBError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
		assert.True(t, IsConflict(err))
	})

	t.Run("constraint violations become validation", func(t *testing.T) {
		for _, code := range []string{
			pgerrcode.ForeignKeyViolation,
			pgerrcode.CheckViolation,
			pgerrcode.NotNullViolation,
		} {
			err := MapDBError(&pgconn.PgError{Code: code})
			assert.True(t, IsValidation(err), "code %s", code)
		}
	})

	t.Run("other pg errors become internal", func(t *testing.T) {
		err := MapDBError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
		assert.True(t, IsInternal(err))
	})

	t.Run("wrapped pg errors are still classified", func(t *testing.T) {
		wrapped := fmt.Errorf("insert work item: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})
		assert.True(t, IsConflict(MapDBError(wrapped)))
	})

	t.Run("non-database errors pass through", func(t *testing.T) {
		sentinel := errors.New("boom")
		require.ErrorIs(t, MapDBError(sentinel), sentinel)
		var appErr *AppError
		assert.False(t, errors.As(MapDBError(sentinel), &appErr))
	})
}
