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
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/blocks"
	"messaging-service/internal/conversations"
	"messaging-service/internal/messages"
	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/movements"
	"messaging-service/internal/store"
	"messaging-service/internal/ws"
)

type env struct {
	store    store.Store
	registry *blocks.Registry
	convs    *conversations.Service
	ledger   *messages.Ledger
	hub      *ws.Hub
}

func newEnv() *env {
	mem := store.NewMemory()
	registry := blocks.NewRegistry(mem)
	convs := conversations.NewService(mem, registry, movements.NewStaticDirectory())
	return &env{
		store:    mem,
		registry: registry,
		convs:    convs,
		ledger:   messages.NewLedger(mem, registry, convs, nil),
		hub:      ws.NewHub(),
	}
}

// asIdentity stands in for the auth middleware in tests.
func asIdentity(who string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.IdentityKey, who)
		c.Next()
	}
}

func conversationRouter(e *env, who string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewConversationHandler(e.convs, e.hub, time.Second)
	r := gin.New()
	r.Use(asIdentity(who))
	r.GET("/conversations", handler.List)
	r.POST("/conversations", handler.Create)
	r.POST("/conversations/:conversation_id/accept", handler.Accept)
	r.POST("/conversations/:conversation_id/decline", handler.Decline)
	r.POST("/conversations/:conversation_id/block", handler.Block)
	r.POST("/conversations/:conversation_id/unblock", handler.Unblock)
	return r
}

func TestCreateConversationPending(t *testing.T) {
	e := newEnv()
	router := conversationRouter(e, "alice")

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"peer":"Bob"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var conv models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))
	assert.Equal(t, models.StatePending, conv.RequestState)
	assert.ElementsMatch(t, []string{"alice", "bob"}, conv.Participants)
}

func TestCreateConversationMissingPeer(t *testing.T) {
	router := conversationRouter(newEnv(), "alice")

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"encrypted":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	// Binding failures carry the stable category and never echo
	// validator internals.
	assert.Equal(t, "invalid_request", resp["category"])
	assert.Equal(t, "invalid payload", resp["error"])
}

func TestAcceptConversation(t *testing.T) {
	e := newEnv()
	conv, err := e.convs.StartDirect(context.Background(), "alice", "bob", false)
	require.NoError(t, err)

	router := conversationRouter(e, "bob")
	req := httptest.NewRequest(http.MethodPost, "/conversations/"+conv.ID+"/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.StateAccepted, got.RequestState)
}

func TestAcceptByRequesterForbidden(t *testing.T) {
	e := newEnv()
	conv, err := e.convs.StartDirect(context.Background(), "alice", "bob", false)
	require.NoError(t, err)

	router := conversationRouter(e, "alice")
	req := httptest.NewRequest(http.MethodPost, "/conversations/"+conv.ID+"/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "permission_denied", resp["category"])
}

func TestAcceptUnknownConversation(t *testing.T) {
	router := conversationRouter(newEnv(), "bob")

	req := httptest.NewRequest(http.MethodPost, "/conversations/nope/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlockThenListHidesForBlockedParty(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	conv, err := e.convs.StartDirect(ctx, "alice", "bob", false)
	require.NoError(t, err)

	bobRouter := conversationRouter(e, "bob")
	req := httptest.NewRequest(http.MethodPost, "/conversations/"+conv.ID+"/block", nil)
	rec := httptest.NewRecorder()
	bobRouter.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	aliceRouter := conversationRouter(e, "alice")
	req = httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec = httptest.NewRecorder()
	aliceRouter.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Conversations)
}

func TestListConversationsStoreTimeout(t *testing.T) {
	storeMock := new(mocks.StoreMock)
	storeMock.On("ListConversations", mock.Anything, "alice", 50, 0).
		Return(nil, context.DeadlineExceeded).Once()

	convs := conversations.NewService(storeMock, blocks.NewRegistry(storeMock), movements.NewStaticDirectory())
	gin.SetMode(gin.TestMode)
	handler := NewConversationHandler(convs, ws.NewHub(), time.Second)
	r := gin.New()
	r.Use(asIdentity("alice"))
	r.GET("/conversations", handler.List)

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// A hung backend surfaces as the timeout category, not a raw 500.
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "service_timeout", resp["category"])
	assert.Equal(t, "service unavailable", resp["error"])
	storeMock.AssertExpectations(t)
}

func TestListConversationsFieldProjection(t *testing.T) {
	e := newEnv()
	_, err := e.convs.StartDirect(context.Background(), "alice", "bob", false)
	require.NoError(t, err)

	router := conversationRouter(e, "alice")
	req := httptest.NewRequest(http.MethodGet, "/conversations?fields=id,kind", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []map[string]any `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Len(t, resp.Conversations[0], 2)
	assert.Equal(t, "direct", resp.Conversations[0]["kind"])
}
