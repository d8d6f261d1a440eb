package actors

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mangrove/internal/models"
	"mangrove/internal/utils"
)

// memoryDB is an in-memory DBAdapter for actor tests.
type memoryDB struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	posts         map[uuid.UUID]*models.Post
	comments      map[uuid.UUID]*models.Comment
	notifications []*models.Notification

	saveNotificationErr error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		users:    make(map[uuid.UUID]*models.User),
		posts:    make(map[uuid.UUID]*models.Post),
		comments: make(map[uuid.UUID]*models.Comment),
	}
}

func (m *memoryDB) Close(ctx context.Context) error { return nil }

func (m *memoryDB) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", nil)
}

func (m *memoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", nil)
}

func (m *memoryDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", nil)
}

func (m *memoryDB) SavePost(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *post
	m.posts[post.ID] = &cp
	return nil
}

func (m *memoryDB) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, utils.NewAppError(utils.ErrNotFound, "post not found", nil)
}

func (m *memoryDB) GetRecentPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []*models.Post{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryDB) IncrementPostCommentCount(ctx context.Context, postID uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	p.CommentCount += delta
	return nil
}

func (m *memoryDB) SaveComment(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *comment
	m.comments[comment.ID] = &cp
	return nil
}

func (m *memoryDB) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.comments[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, utils.NewAppError(utils.ErrNotFound, "comment not found", nil)
}

func (m *memoryDB) UpdateCommentContent(ctx context.Context, id uuid.UUID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "comment not found", nil)
	}
	c.Content = content
	return nil
}

func (m *memoryDB) GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryDB) DeleteCommentTree(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return 0, utils.NewAppError(utils.ErrNotFound, "comment not found", nil)
	}
	doomed := map[uuid.UUID]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, c := range m.comments {
			if c.ParentID != nil && doomed[*c.ParentID] && !doomed[c.ID] {
				doomed[c.ID] = true
				changed = true
			}
		}
	}
	for cid := range doomed {
		delete(m.comments, cid)
	}
	return len(doomed), nil
}

func (m *memoryDB) SaveNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveNotificationErr != nil {
		return m.saveNotificationErr
	}
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *memoryDB) GetNotifications(ctx context.Context, userID uuid.UUID, filter models.NotificationFilter, limit, offset int) (*models.NotificationPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*models.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if n.UserID != userID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		cp := *n
		items = append(items, &cp)
	}
	total := len(items)
	if offset > 0 {
		if offset >= len(items) {
			items = items[:0]
		} else {
			items = items[offset:]
		}
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return &models.NotificationPage{Items: items, Total: total}, nil
}

func (m *memoryDB) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == notificationID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return utils.NewAppError(utils.ErrNotFound, "notification not found", nil)
}

func (m *memoryDB) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

// notificationsFor returns stored rows for one user.
func (m *memoryDB) notificationsFor(userID uuid.UUID) []*models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}

// recordingPusher captures pushed notifications.
type recordingPusher struct {
	mu     sync.Mutex
	pushed []*models.Notification
}

func (p *recordingPusher) PushNotification(n *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, n)
}

func (p *recordingPusher) all() []*models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Notification, len(p.pushed))
	copy(out, p.pushed)
	return out
}
