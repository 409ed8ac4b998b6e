package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchforge/searchforge/internal/pkg/errcode"
)

type apiResponse struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var parsed apiResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &parsed))
	return resp, parsed
}

func TestIndexAndSearch(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	indexBody := map[string]interface{}{
		"server_id": "s1",
		"index_id":  "idx",
		"item_id":   "doc-1",
		"language":  "english",
		"fields": []map[string]interface{}{
			{"name": "title", "value": "the quick brown fox", "searchable": true},
			{"name": "secret", "value": "hidden token", "searchable": false},
		},
	}
	resp, parsed := doJSON(t, router, http.MethodPut, "/api/v1/items", indexBody)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Zero(t, parsed.Code)

	searchBody := map[string]interface{}{
		"server_id": "s1",
		"index_id":  "idx",
		"query":     "quick fox",
		"language":  "english",
		"mode":      "text_only",
	}
	resp, parsed = doJSON(t, router, http.MethodPost, "/api/v1/search", searchBody)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Zero(t, parsed.Code)

	results, ok := parsed.Data["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 1)
	first, ok := results[0].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "doc-1", first["item_id"])

	// Non-searchable fields never match.
	searchBody["query"] = "hidden token"
	resp, parsed = doJSON(t, router, http.MethodPost, "/api/v1/search", searchBody)
	require.Equal(t, http.StatusOK, resp.Code)
	results, ok = parsed.Data["results"].([]interface{})
	require.True(t, ok)
	require.Empty(t, results)
}

func TestSearchValidation(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	resp, parsed := doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query": "no ids",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, errcode.ErrInvalid, parsed.Code)
}

func TestHybridSearchDegradesWithoutProvider(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	indexBody := map[string]interface{}{
		"server_id": "s1",
		"index_id":  "idx",
		"item_id":   "doc-1",
		"language":  "english",
		"fields": []map[string]interface{}{
			{"name": "body", "value": "hybrid search still answers", "searchable": true},
		},
	}
	resp, _ := doJSON(t, router, http.MethodPut, "/api/v1/items", indexBody)
	require.Equal(t, http.StatusOK, resp.Code)

	resp, parsed := doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"server_id": "s1",
		"index_id":  "idx",
		"query":     "hybrid search",
		"language":  "english",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Zero(t, parsed.Code)
	results, ok := parsed.Data["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 1)
}

func TestDeleteItem(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	indexBody := map[string]interface{}{
		"server_id": "s1",
		"index_id":  "idx",
		"item_id":   "doc-1",
		"language":  "english",
		"fields": []map[string]interface{}{
			{"name": "body", "value": "short lived", "searchable": true},
		},
	}
	resp, _ := doJSON(t, router, http.MethodPut, "/api/v1/items", indexBody)
	require.Equal(t, http.StatusOK, resp.Code)

	resp, parsed := doJSON(t, router, http.MethodDelete, "/api/v1/items", map[string]interface{}{
		"server_id": "s1",
		"index_id":  "idx",
		"item_id":   "doc-1",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Zero(t, parsed.Code)

	resp, parsed = doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"server_id": "s1",
		"index_id":  "idx",
		"query":     "short lived",
		"language":  "english",
		"mode":      "text_only",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	results, ok := parsed.Data["results"].([]interface{})
	require.True(t, ok)
	require.Empty(t, results)
}
