package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"mangrove/internal/models"
	"mangrove/internal/utils"
)

// Client is the HTTP client for the engine's REST surface. It
// satisfies the API interfaces of the feed and notify packages, so
// either can run against a live engine or a fake in tests.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client against baseURL. The token, when non-empty, is
// sent as a bearer credential on every request.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetToken swaps the bearer token, typically after Login.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

type createCommentRequest struct {
	Content  string `json:"content"`
	PostID   string `json:"postId"`
	ParentID string `json:"parentId,omitempty"`
}

type editCommentRequest struct {
	CommentID string `json:"commentId"`
	Content   string `json:"content"`
}

// CreateComment posts a new comment or reply and returns the
// server-confirmed row.
func (c *Client) CreateComment(ctx context.Context, postID uuid.UUID, content string, parentID *uuid.UUID) (*models.Comment, error) {
	req := createCommentRequest{Content: content, PostID: postID.String()}
	if parentID != nil {
		req.ParentID = parentID.String()
	}
	var out models.Comment
	if err := c.do(ctx, http.MethodPost, "/comment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditComment replaces a comment's content.
func (c *Client) EditComment(ctx context.Context, commentID uuid.UUID, content string) (*models.Comment, error) {
	req := editCommentRequest{CommentID: commentID.String(), Content: content}
	var out models.Comment
	if err := c.do(ctx, http.MethodPut, "/comment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment and its replies.
func (c *Client) DeleteComment(ctx context.Context, commentID uuid.UUID) error {
	path := "/comment?commentId=" + url.QueryEscape(commentID.String())
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetPostComments fetches the full comment tree for a post.
func (c *Client) GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	path := "/comments?postId=" + url.QueryEscape(postID.String())
	var out []*models.Comment
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListNotifications pages through the caller's notifications, newest
// first. limit and offset of zero mean the server defaults.
func (c *Client) ListNotifications(ctx context.Context, filter models.NotificationFilter, limit, offset int) (*models.NotificationPage, error) {
	q := url.Values{}
	if filter.UnreadOnly {
		q.Set("unreadOnly", "true")
	}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/notifications"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out models.NotificationPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type markReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
}

// MarkNotificationsRead flips the given notifications to read and
// returns how many rows the server updated.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []uuid.UUID) (int, error) {
	req := markReadRequest{NotificationIDs: make([]string, len(ids))}
	for i, id := range ids {
		req.NotificationIDs[i] = id.String()
	}
	var out models.MarkReadResponse
	if err := c.do(ctx, http.MethodPost, "/notifications/read", req, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// MarkAllNotificationsRead flips every notification for the caller.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var out models.MarkReadResponse
	if err := c.do(ctx, http.MethodPost, "/notifications/read-all", nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session credentials issued by the engine.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	Error   string `json:"error,omitempty"`
}

// Register creates an account and returns the new user.
func (c *Client) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPost, "/user/register", registerRequest{Username: username, Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/user/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, title, content string) (*models.Post, error) {
	var out models.Post
	if err := c.do(ctx, http.MethodPost, "/post", createPostRequest{Title: title, Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPost fetches one post by id.
func (c *Client) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	path := "/post?id=" + url.QueryEscape(id.String())
	var out models.Post
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// errorBody is the engine's error response shape.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do runs one request and decodes the response into out when both are
// non-nil. Transport failures come back as NETWORK_ERROR and rejected
// requests carry the server's error code, so callers can branch on
// code without knowing about HTTP.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return utils.NewAppError(utils.ErrInvalidInput, "failed to encode request body", err)
		}
		buf = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.serverError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return utils.NewAppError(utils.ErrServer, "failed to decode response", err)
		}
	}
	return nil
}

func (c *Client) serverError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Code != "" {
		msg := body.Message
		if msg == "" {
			msg = body.Error
		}
		return utils.NewAppError(body.Code, msg, nil)
	}

	msg := string(bytes.TrimSpace(raw))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return utils.NewAppError(utils.ErrUnauthorized, msg, nil)
	case http.StatusForbidden:
		return utils.NewAppError(utils.ErrForbidden, msg, nil)
	case http.StatusNotFound:
		return utils.NewAppError(utils.ErrNotFound, msg, nil)
	default:
		return utils.NewAppError(utils.ErrServer, fmt.Sprintf("status %d: %s", resp.StatusCode, msg), nil)
	}
}
