package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyRouter(e *env, who string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewKeyHandler(e.store, time.Second)
	r := gin.New()
	r.Use(asIdentity(who))
	r.POST("/keys", handler.Register)
	r.GET("/keys/:identity", handler.Get)
	return r
}

func TestRegisterAndFetchKey(t *testing.T) {
	e := newEnv()
	router := keyRouter(e, "alice")

	req := httptest.NewRequest(http.MethodPost, "/keys",
		bytes.NewBufferString(`{"key_data":"base64-public-key"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/keys/Alice", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice", resp["identity"])
	assert.Equal(t, "base64-public-key", resp["key_data"])
}

func TestFetchMissingKey(t *testing.T) {
	router := keyRouter(newEnv(), "alice")

	req := httptest.NewRequest(http.MethodGet, "/keys/bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
