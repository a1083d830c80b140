package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func respond(t *testing.T, err error) (int, ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)
	var pd ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pd))
	return rec.Code, pd
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NewError(ErrNotFound, "gone"), 404},
		{NewError(ErrConflict, "busy"), 409},
		{NewError(ErrValidation, "bad"), 400},
		{NewError(ErrForbidden, "no"), 403},
		{NewError(ErrUnauthorized, "who"), 401},
	}
	for _, tc := range cases {
		status, pd := respond(t, tc.err)
		require.Equal(t, tc.status, status)
		require.Equal(t, tc.err.Error(), pd.Detail)
		require.Zero(t, pd.Code)
	}
}

func TestRespondErrorCarriesBusinessCode(t *testing.T) {
	status, pd := respond(t, NewCoded(ErrConflict, 3001, "already linked"))

	require.Equal(t, 409, status)
	require.Equal(t, 3001, pd.Code)
	require.Equal(t, "already linked", pd.Detail)
}

func TestRespondErrorMapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("link invoice: %w", NewCoded(ErrConflict, 3001, "already linked"))

	status, pd := respond(t, wrapped)

	require.Equal(t, 409, status)
	require.Equal(t, 3001, pd.Code)
}

func TestRespondErrorHidesUnknownErrors(t *testing.T) {
	status, pd := respond(t, errors.New("pq: connection refused"))

	require.Equal(t, 503, status)
	require.Empty(t, pd.Detail)
	require.Zero(t, pd.Code)
}

func TestClassified(t *testing.T) {
	require.True(t, Classified(NewError(ErrValidation, "bad")))
	require.True(t, Classified(fmt.Errorf("wrap: %w", NewError(ErrNotFound, "gone"))))
	require.False(t, Classified(errors.New("io timeout")))
}
