package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespond(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		success bool
	}{
		{name: "ok", status: http.StatusOK, success: true},
		{name: "created", status: http.StatusCreated, success: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, success: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			Respond(w, tt.status, map[string]string{"status": "x"})

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var env Envelope[map[string]string]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Equal(t, tt.success, env.Success)
			assert.Equal(t, "x", env.Data["status"])
			assert.Nil(t, env.Meta)
		})
	}
}

func TestRespondPage(t *testing.T) {
	type listing struct {
		Parent string   `json:"parent"`
		Items  []string `json:"items"`
	}
	w := httptest.NewRecorder()

	RespondPage(w, http.StatusOK, []string{"a", "b", "c", "d", "e"}, PaginationParams{Page: 2, PageSize: 2},
		func(page []string) listing { return listing{Parent: "root", Items: page} })

	var env Envelope[listing]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, listing{Parent: "root", Items: []string{"c", "d"}}, env.Data)
	require.NotNil(t, env.Meta)
	assert.Equal(t, &PaginationInfo{Page: 2, PageSize: 2, Total: 5, TotalPages: 3, HasNext: true, HasPrev: true}, env.Meta.Pagination)
}

func TestRespondPage_PastTheEnd(t *testing.T) {
	w := httptest.NewRecorder()

	RespondPage(w, http.StatusOK, []int{1, 2}, PaginationParams{Page: 4, PageSize: 2},
		func(page []int) []int { return page })

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []interface{}{}, body["data"])
	pagination := body["meta"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(t, false, pagination["has_next"])
	assert.Equal(t, true, pagination["has_prev"])
}
