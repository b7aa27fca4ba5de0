package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyReplayAndRelease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusCreated
	calls := 0
	h := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, 1, calls)

	mr.FlushAll()
	status = http.StatusUnprocessableEntity
	require.Equal(t, http.StatusUnprocessableEntity, send())
	// failed attempts free the key
	require.Equal(t, http.StatusUnprocessableEntity, send())
	require.Equal(t, 3, calls)
}

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Rate  int    `json:"rate" validate:"gte=0,lte=100"`
}

func TestValidateStructReportsJSONNames(t *testing.T) {
	err := ValidateStruct(sample{Email: "nope", Rate: 101})
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	fields := appErr.Details.([]FieldError)
	require.Len(t, fields, 2)
	require.Equal(t, "email", fields[0].Field)
	require.Equal(t, "rate", fields[1].Field)
	require.Equal(t, "lte", fields[1].Rule)

	require.NoError(t, ValidateStruct(sample{Email: "a@b.co", Rate: 5}))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NotFound("invoice not found", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, strings.Contains(rec.Body.String(), "boom"))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	page, perPage := ParsePagination(req, 20, 100)
	require.Equal(t, 3, page)
	require.Equal(t, 100, perPage)
	require.Equal(t, 200, Offset(page, perPage))
}
