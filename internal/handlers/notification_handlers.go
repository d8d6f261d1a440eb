package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mangrove/internal/engine/actors"
	"mangrove/internal/middleware"
	"mangrove/internal/models"
	"mangrove/internal/utils"

	"github.com/google/uuid"
)

// MarkNotificationsReadRequest identifies notifications to flip.
type MarkNotificationsReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
}

// HandleNotifications lists the authenticated user's notifications,
// newest first.
func (s *Server) HandleNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			writeAppError(w, utils.NewUnauthorizedError("Missing authenticated user"))
			return
		}

		q := r.URL.Query()
		filter := models.NotificationFilter{
			UnreadOnly: q.Get("unreadOnly") == "true",
			Type:       models.NotificationType(q.Get("type")),
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		future := s.Context.RequestFuture(s.Engine.GetNotificationActor(), &actors.ListNotificationsMsg{
			UserID: userID,
			Filter: filter,
			Limit:  limit,
			Offset: offset,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to fetch notifications", err))
			return
		}
		respondActorResult(w, result)
	}
}

// HandleMarkNotificationsRead flips the listed notifications to read
// and reports how many rows changed.
func (s *Server) HandleMarkNotificationsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			writeAppError(w, utils.NewUnauthorizedError("Missing authenticated user"))
			return
		}

		var req MarkNotificationsReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		ids := make([]uuid.UUID, 0, len(req.NotificationIDs))
		for _, raw := range req.NotificationIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "Invalid notification ID", http.StatusBadRequest)
				return
			}
			ids = append(ids, id)
		}

		future := s.Context.RequestFuture(s.Engine.GetNotificationActor(), &actors.MarkNotificationsReadMsg{
			UserID:          userID,
			NotificationIDs: ids,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to mark notifications read", err))
			return
		}
		respondActorResult(w, result)
	}
}

// HandleMarkAllNotificationsRead flips every unread notification for
// the authenticated user.
func (s *Server) HandleMarkAllNotificationsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			writeAppError(w, utils.NewUnauthorizedError("Missing authenticated user"))
			return
		}

		future := s.Context.RequestFuture(s.Engine.GetNotificationActor(), &actors.MarkAllNotificationsReadMsg{
			UserID: userID,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to mark notifications read", err))
			return
		}
		respondActorResult(w, result)
	}
}
