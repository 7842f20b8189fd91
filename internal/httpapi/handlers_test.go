package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manadraft/league/internal/draft"
	"github.com/manadraft/league/internal/draft/recommender"
)

func TestWriteDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{draft.ErrNotYourTurn, http.StatusConflict},
		{draft.ErrCardUnavailable, http.StatusConflict},
		{draft.ErrSlotAlreadyFilled, http.StatusConflict},
		{draft.ErrSessionNotActive, http.StatusConflict},
		{draft.ErrInsufficientBudget, http.StatusUnprocessableEntity},
		{recommender.ErrNoEligibleCard, http.StatusUnprocessableEntity},
		{draft.ErrPickNotFound, http.StatusNotFound},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteDomainError_MapsWrappedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("commit pick: %w", draft.ErrCardUnavailable))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWriteDomainError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestPathUUID_RejectsGarbage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := pathUUID(w, r, "id"); !ok {
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/8cbe15ad-1d9b-4b1f-9c32-9d2f1ae3f0aa", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
