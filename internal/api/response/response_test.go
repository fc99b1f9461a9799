package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldatlas/fieldatlas/internal/api/models"
	"github.com/fieldatlas/fieldatlas/internal/api/response"
)

func TestJSON_WritesBodyAndHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/modes", nil)
	w := httptest.NewRecorder()

	response.JSON(w, req, http.StatusOK, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestJSON_NilBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/modes", nil)
	w := httptest.NewRecorder()

	response.JSON(w, req, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestErrorHelpers_SetInstanceAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
		wantType   string
	}{
		{
			name: "bad request",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.BadRequest(w, r, "nope", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantType:   models.ProblemTypeValidation,
		},
		{
			name: "not found",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.NotFound(w, r, "nope")
			},
			wantStatus: http.StatusNotFound,
			wantType:   models.ProblemTypeNotFound,
		},
		{
			name: "conflict",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.Conflict(w, r, "nope")
			},
			wantStatus: http.StatusConflict,
			wantType:   models.ProblemTypeConflict,
		},
		{
			name: "region too large",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.RegionTooLarge(w, r, "nope")
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   models.ProblemTypeRegionTooLarge,
		},
		{
			name: "service unavailable",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.ServiceUnavailable(w, r, "nope")
			},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   models.ProblemTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/anything", nil)
			w := httptest.NewRecorder()

			tt.write(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/v1/anything", problem.Instance)
		})
	}
}

func TestAccepted_SetsLocation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/regions", nil)
	w := httptest.NewRecorder()

	response.Accepted(w, req, "/v1/regions/active", map[string]int{"tileCount": 42})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/v1/regions/active", w.Header().Get("Location"))
}

func TestNoContent(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/v1/regions/rgn_x", nil)
	w := httptest.NewRecorder()

	response.NoContent(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
