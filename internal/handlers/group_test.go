package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/conversations"
	"messaging-service/internal/models"
)

func groupRouter(e *env, who string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewGroupHandler(e.convs, e.hub, time.Second)
	r := gin.New()
	r.Use(asIdentity(who))
	r.POST("/groups", handler.Create)
	r.PATCH("/groups/:group_id", handler.Update)
	r.POST("/groups/:group_id/participants", handler.AddParticipants)
	r.DELETE("/groups/:group_id/participants", handler.RemoveParticipants)
	return r
}

func TestCreateGroupSuccess(t *testing.T) {
	e := newEnv()
	router := groupRouter(e, "alice")

	req := httptest.NewRequest(http.MethodPost, "/groups",
		bytes.NewBufferString(`{"name":"plans","members":["bob","carol"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var conv models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))
	assert.Equal(t, models.KindGroup, conv.Kind)
	assert.Equal(t, "alice", conv.Owner)
	assert.Len(t, conv.Participants, 3)
}

func TestCreateGroupMissingName(t *testing.T) {
	router := groupRouter(newEnv(), "alice")

	req := httptest.NewRequest(http.MethodPost, "/groups",
		bytes.NewBufferString(`{"members":["bob"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateGroupPostMode(t *testing.T) {
	e := newEnv()
	conv, err := e.convs.CreateGroup(context.Background(), "alice",
		conversations.GroupInput{Name: "g", Members: []string{"bob", "carol"}})
	require.NoError(t, err)

	router := groupRouter(e, "alice")
	req := httptest.NewRequest(http.MethodPatch, "/groups/"+conv.ID,
		bytes.NewBufferString(`{"post_mode":"admins"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.PostAdmins, got.PostMode)
}

func TestUpdateGroupNonAdminForbidden(t *testing.T) {
	e := newEnv()
	conv, err := e.convs.CreateGroup(context.Background(), "alice",
		conversations.GroupInput{Name: "g", Members: []string{"bob", "carol"}})
	require.NoError(t, err)

	router := groupRouter(e, "bob")
	req := httptest.NewRequest(http.MethodPatch, "/groups/"+conv.ID,
		bytes.NewBufferString(`{"name":"hijacked"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddAndRemoveParticipants(t *testing.T) {
	e := newEnv()
	conv, err := e.convs.CreateGroup(context.Background(), "alice",
		conversations.GroupInput{Name: "g", Members: []string{"bob", "carol"}})
	require.NoError(t, err)

	router := groupRouter(e, "alice")

	req := httptest.NewRequest(http.MethodPost, "/groups/"+conv.ID+"/participants",
		bytes.NewBufferString(`{"participants":["dave"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Contains(t, got.Participants, "dave")

	req = httptest.NewRequest(http.MethodDelete, "/groups/"+conv.ID+"/participants",
		bytes.NewBufferString(`{"participants":["dave","carol"]}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got = models.Conversation{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, []string{"alice", "bob"}, got.Participants)
}

func TestRemoveOwnerRejected(t *testing.T) {
	e := newEnv()
	conv, err := e.convs.CreateGroup(context.Background(), "alice",
		conversations.GroupInput{Name: "g", Members: []string{"bob", "carol"}})
	require.NoError(t, err)

	router := groupRouter(e, "alice")
	req := httptest.NewRequest(http.MethodDelete, "/groups/"+conv.ID+"/participants",
		bytes.NewBufferString(`{"participants":["alice"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
