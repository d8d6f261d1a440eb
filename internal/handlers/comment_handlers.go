package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"mangrove/internal/engine/actors"
	"mangrove/internal/middleware"
	"mangrove/internal/utils"

	"github.com/google/uuid"
)

// CreateCommentRequest represents a request to create a new comment
type CreateCommentRequest struct {
	Content  string `json:"content"`
	PostID   string `json:"postId"`
	ParentID string `json:"parentId,omitempty"` // Optional, for replies
}

// EditCommentRequest represents a request to edit an existing comment
type EditCommentRequest struct {
	CommentID string `json:"commentId"`
	Content   string `json:"content"`
}

// HandleComment handles comment-related operations
func (s *Server) HandleComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			writeAppError(w, utils.NewUnauthorizedError("Missing authenticated user"))
			return
		}

		switch r.Method {
		case http.MethodPost:
			var req CreateCommentRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				log.Printf("Error decoding comment request: %v", err)
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}

			postID, err := uuid.Parse(req.PostID)
			if err != nil {
				http.Error(w, "Invalid post ID", http.StatusBadRequest)
				return
			}

			var parentID *uuid.UUID
			if req.ParentID != "" {
				parsed, err := uuid.Parse(req.ParentID)
				if err != nil {
					http.Error(w, "Invalid parent comment ID", http.StatusBadRequest)
					return
				}
				parentID = &parsed
			}

			future := s.Context.RequestFuture(s.Engine.GetCommentActor(), &actors.CreateCommentMsg{
				Content:  req.Content,
				AuthorID: userID,
				PostID:   postID,
				ParentID: parentID,
			}, s.RequestTimeout)

			result, err := future.Result()
			if err != nil {
				log.Printf("Comment actor create request failed: %v", err)
				writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to create comment", err))
				return
			}
			respondActorResult(w, result)

		case http.MethodPut:
			var req EditCommentRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}

			commentID, err := uuid.Parse(req.CommentID)
			if err != nil {
				http.Error(w, "Invalid comment ID", http.StatusBadRequest)
				return
			}

			future := s.Context.RequestFuture(s.Engine.GetCommentActor(), &actors.EditCommentMsg{
				CommentID: commentID,
				AuthorID:  userID,
				Content:   req.Content,
			}, s.RequestTimeout)

			result, err := future.Result()
			if err != nil {
				writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to edit comment", err))
				return
			}
			respondActorResult(w, result)

		case http.MethodDelete:
			commentID, err := uuid.Parse(r.URL.Query().Get("commentId"))
			if err != nil {
				http.Error(w, "Invalid comment ID", http.StatusBadRequest)
				return
			}

			future := s.Context.RequestFuture(s.Engine.GetCommentActor(), &actors.DeleteCommentMsg{
				CommentID: commentID,
				AuthorID:  userID,
			}, s.RequestTimeout)

			result, err := future.Result()
			if err != nil {
				writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to delete comment", err))
				return
			}
			respondActorResult(w, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleGetPostComments returns the full nested comment tree for a post.
func (s *Server) HandleGetPostComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		postID, err := uuid.Parse(r.URL.Query().Get("postId"))
		if err != nil {
			http.Error(w, "Invalid post ID", http.StatusBadRequest)
			return
		}

		future := s.Context.RequestFuture(s.Engine.GetCommentActor(), &actors.GetCommentsForPostMsg{
			PostID: postID,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to fetch comments", err))
			return
		}
		respondActorResult(w, result)
	}
}
