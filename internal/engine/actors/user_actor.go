package actors

import (
	stdctx "context"
	"log"
	"strings"
	"time"

	"mangrove/internal/api"
	"mangrove/internal/database"
	"mangrove/internal/middleware"
	"mangrove/internal/models"
	"mangrove/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Message types for UserActor
type (
	RegisterUserMsg struct {
		Username string
		Email    string
		Password string
	}

	LoginMsg struct {
		Email    string
		Password string
	}

	GetUserProfileMsg struct {
		UserID uuid.UUID
	}
)

// UserActor owns account registration and login.
type UserActor struct {
	db database.DBAdapter
}

func NewUserActor(db database.DBAdapter) actor.Actor {
	return &UserActor{db: db}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("UserActor started with PID: %v", context.Self())

	case *RegisterUserMsg:
		a.handleRegister(context, msg)

	case *LoginMsg:
		a.handleLogin(context, msg)

	case *GetUserProfileMsg:
		a.handleGetProfile(context, msg)

	default:
		log.Printf("UserActor: Unknown message type %T", msg)
	}
}

func (a *UserActor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	if strings.TrimSpace(msg.Username) == "" || strings.TrimSpace(msg.Email) == "" || msg.Password == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Username, email and password are required", nil))
		return
	}

	ctx := stdctx.Background()
	if existing, _ := a.db.GetUserByEmail(ctx, msg.Email); existing != nil {
		context.Respond(utils.NewAppError(utils.ErrUserAlreadyExists, "Email already registered", nil))
		return
	}
	if existing, _ := a.db.GetUserByUsername(ctx, msg.Username); existing != nil {
		context.Respond(utils.NewAppError(utils.ErrUserAlreadyExists, "Username already taken", nil))
		return
	}

	hashed, err := hashPassword(msg.Password)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Failed to hash password", err))
		return
	}

	now := time.Now()
	user := &models.User{
		ID:             uuid.New(),
		Username:       msg.Username,
		Email:          msg.Email,
		HashedPassword: hashed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := a.db.SaveUser(ctx, user); err != nil {
		if utils.IsErrorCode(err, utils.ErrDuplicate) {
			context.Respond(utils.NewAppError(utils.ErrUserAlreadyExists, "User already exists", err))
			return
		}
		log.Printf("Failed to save user: %v", err)
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to save user", err))
		return
	}

	log.Printf("Registered user %s (%s)", user.Username, user.ID)
	context.Respond(user)
}

func (a *UserActor) handleLogin(context actor.Context, msg *LoginMsg) {
	ctx := stdctx.Background()
	user, err := a.db.GetUserByEmail(ctx, msg.Email)
	if err != nil {
		log.Printf("Login failed for %s: %v", msg.Email, err)
		context.Respond(&api.LoginResponse{
			Success: false,
			Error:   "Invalid credentials",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		context.Respond(&api.LoginResponse{
			Success: false,
			Error:   "Invalid credentials",
		})
		return
	}

	token, err := middleware.GenerateToken(user.ID)
	if err != nil {
		log.Printf("Failed to generate auth token: %v", err)
		context.Respond(&api.LoginResponse{
			Success: false,
			Error:   "Authentication error",
		})
		return
	}

	log.Printf("Login successful for user %s", user.Username)
	context.Respond(&api.LoginResponse{
		Success: true,
		Token:   token,
		UserID:  user.ID.String(),
	})
}

func (a *UserActor) handleGetProfile(context actor.Context, msg *GetUserProfileMsg) {
	ctx := stdctx.Background()
	user, err := a.db.GetUser(ctx, msg.UserID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrUserNotFound) {
			context.Respond(utils.NewAppError(utils.ErrUserNotFound, "User not found", nil))
		} else {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch user", err))
		}
		return
	}
	context.Respond(user)
}
