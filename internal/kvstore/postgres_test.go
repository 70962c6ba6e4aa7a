package kvstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestClassifyPgError(t *testing.T) {
	for _, code := range []string{"53100", "53200", "54000"} {
		err := classifyPgError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, Message: "full"}))
		require.ErrorIs(t, err, ErrCapacityExceeded, code)
	}

	unique := &pgconn.PgError{Code: "23505"}
	require.Equal(t, unique, classifyPgError(unique))

	plain := errors.New("boom")
	require.Equal(t, plain, classifyPgError(plain))
	require.NoError(t, classifyPgError(nil))
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `staging\_scan\%`, escapeLike("staging_scan%"))
}
