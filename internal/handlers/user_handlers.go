package handlers

import (
	"encoding/json"
	"net/http"

	"mangrove/internal/engine/actors"
	"mangrove/internal/middleware"
	"mangrove/internal/utils"
)

// RegisterUserRequest is the body for POST /user/register.
type RegisterUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /user/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegisterUser creates a new account.
func (s *Server) HandleRegisterUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req RegisterUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		future := s.Context.RequestFuture(s.Engine.GetUserActor(), &actors.RegisterUserMsg{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to register user", err))
			return
		}
		respondActorResult(w, result)
	}
}

// HandleLoginUser exchanges credentials for an access token.
func (s *Server) HandleLoginUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		future := s.Context.RequestFuture(s.Engine.GetUserActor(), &actors.LoginMsg{
			Email:    req.Email,
			Password: req.Password,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to log in", err))
			return
		}
		respondActorResult(w, result)
	}
}

// HandleUserProfile returns the authenticated user's profile.
func (s *Server) HandleUserProfile() http.HandlerFunc {
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

		future := s.Context.RequestFuture(s.Engine.GetUserActor(), &actors.GetUserProfileMsg{
			UserID: userID,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			writeAppError(w, utils.NewAppError(utils.ErrActorTimeout, "Failed to fetch profile", err))
			return
		}
		respondActorResult(w, result)
	}
}
