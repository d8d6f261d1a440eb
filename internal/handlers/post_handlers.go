package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mangrove/internal/engine/actors"
	"mangrove/internal/middleware"
	"mangrove/internal/utils"

	"github.com/google/uuid"
)

// CreatePostRequest is the body for POST /post. The author comes from
// the access token, not the body.
type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// HandlePost creates a post or fetches one by id.
func (s *Server) HandlePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			userID, ok := middleware.GetUserIDFromContext(r.Context())
			if !ok {
				writeAppError(w, utils.NewUnauthorizedError("Missing authenticated user"))
				return
			}

			var req CreatePostRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}

			future := s.Context.RequestFuture(s.Engine.GetPostActor(), &actors.CreatePostMsg{
				Title:    req.Title,
				Content:  req.Content,
				AuthorID: userID,
			}, s.RequestTimeout)

			result, err := future.Result()
			if err != nil {
				writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to create post", err))
				return
			}
			respondActorResult(w, result)

		case http.MethodGet:
			postID, err := uuid.Parse(r.URL.Query().Get("id"))
			if err != nil {
				http.Error(w, "Invalid post ID", http.StatusBadRequest)
				return
			}

			future := s.Context.RequestFuture(s.Engine.GetPostActor(), &actors.GetPostMsg{
				PostID: postID,
			}, s.RequestTimeout)

			result, err := future.Result()
			if err != nil {
				writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to fetch post", err))
				return
			}
			respondActorResult(w, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleRecentPosts lists posts newest first.
func (s *Server) HandleRecentPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		future := s.Context.RequestFuture(s.Engine.GetPostActor(), &actors.GetRecentPostsMsg{
			Limit:  limit,
			Offset: offset,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to fetch posts", err))
			return
		}
		respondActorResult(w, result)
	}
}
