package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrove/internal/models"
	"mangrove/internal/utils"
)

func TestCreateCommentSendsBearerAndDecodes(t *testing.T) {
	postID := uuid.New()
	confirmed := models.Comment{ID: uuid.New(), Content: "hello", PostID: postID}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/comment", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var req createCommentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Content)
		assert.Equal(t, postID.String(), req.PostID)
		assert.Empty(t, req.ParentID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(confirmed)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-123")
	got, err := c.CreateComment(context.Background(), postID, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, confirmed.ID, got.ID)
}

func TestServerErrorCodePassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    utils.ErrForbidden,
			"message": "not the comment author",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	err := c.DeleteComment(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrForbidden))
	assert.Contains(t, err.Error(), "not the comment author")
}

func TestPlainErrorBodyMapsByStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such comment", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	err := c.DeleteComment(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := New(srv.URL, "tok")
	_, err := c.GetPostComments(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNetwork))
}

func TestListNotificationsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("unreadOnly"))
		assert.Equal(t, "mention", r.URL.Query().Get("type"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(models.NotificationPage{Items: []*models.Notification{}, Total: 0})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	page, err := c.ListNotifications(context.Background(), models.NotificationFilter{UnreadOnly: true, Type: models.NotificationMention}, 25, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestMarkNotificationsReadSendsBatch(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/read", r.URL.Path)

		var req markReadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{ids[0].String(), ids[1].String()}, req.NotificationIDs)

		json.NewEncoder(w).Encode(models.MarkReadResponse{Updated: 2})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	updated, err := c.MarkNotificationsRead(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
}
