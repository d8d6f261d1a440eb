package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrove/internal/models"
	"mangrove/internal/utils"
)

type fakeNotifyAPI struct {
	mu        sync.Mutex
	rows      []*models.Notification
	listErr   error
	markErr   error
	markedIDs []uuid.UUID
	markedAll int
	listCalls int
}

func (f *fakeNotifyAPI) ListNotifications(_ context.Context, _ models.NotificationFilter, _, _ int) (*models.NotificationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	items := make([]*models.Notification, len(f.rows))
	copy(items, f.rows)
	return &models.NotificationPage{Items: items, Total: len(items)}, nil
}

func (f *fakeNotifyAPI) MarkNotificationsRead(_ context.Context, ids []uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return 0, f.markErr
	}
	f.markedIDs = append(f.markedIDs, ids...)
	updated := 0
	for _, id := range ids {
		for i, n := range f.rows {
			if n.ID == id && !n.IsRead {
				cp := *n
				cp.IsRead = true
				f.rows[i] = &cp
				updated++
			}
		}
	}
	return updated, nil
}

func (f *fakeNotifyAPI) MarkAllNotificationsRead(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return 0, f.markErr
	}
	f.markedAll++
	updated := 0
	for i, n := range f.rows {
		if !n.IsRead {
			cp := *n
			cp.IsRead = true
			f.rows[i] = &cp
			updated++
		}
	}
	return updated, nil
}

func notif(read bool) *models.Notification {
	return &models.Notification{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Type:      models.NotificationReply,
		Title:     "New reply",
		Message:   "someone replied",
		IsRead:    read,
		CreatedAt: time.Now(),
	}
}

func TestPushPrependsAndDedups(t *testing.T) {
	api := &fakeNotifyAPI{}
	s := NewSync(api, time.Hour, nil)

	first := notif(false)
	second := notif(false)
	s.Push(first)
	s.Push(second)
	s.Push(second)

	items := s.Notifications()
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID, "newest first")
	assert.Equal(t, 2, s.UnreadCount())
}

func TestMarkAsReadIsOptimistic(t *testing.T) {
	api := &fakeNotifyAPI{}
	s := NewSync(api, time.Hour, nil)
	a, b := notif(false), notif(false)
	s.Push(a)
	s.Push(b)

	s.MarkAsRead(context.Background(), a.ID)

	assert.Equal(t, 1, s.UnreadCount(), "count drops before any refetch")
	assert.Equal(t, []uuid.UUID{a.ID}, api.markedIDs)
	for _, n := range s.Notifications() {
		if n.ID == a.ID {
			assert.True(t, n.IsRead)
		}
	}
	assert.False(t, a.IsRead, "caller's row not mutated")
}

func TestMarkAsReadBatch(t *testing.T) {
	api := &fakeNotifyAPI{}
	s := NewSync(api, time.Hour, nil)
	a, b, c := notif(false), notif(false), notif(false)
	s.Push(a)
	s.Push(b)
	s.Push(c)

	s.MarkAsRead(context.Background(), a.ID, b.ID)

	assert.Equal(t, 1, s.UnreadCount())
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, api.markedIDs)
}

func TestMarkAllThenRefetchStaysZero(t *testing.T) {
	api := &fakeNotifyAPI{rows: []*models.Notification{notif(false), notif(false), notif(true)}}
	s := NewSync(api, time.Hour, nil)

	s.refetch(context.Background())
	require.Equal(t, 2, s.UnreadCount())

	s.MarkAllAsRead(context.Background())
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 1, api.markedAll)

	// The server flipped its rows too, so the refetch agrees.
	s.refetch(context.Background())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestRefetchReplacesCacheAndClearsOverride(t *testing.T) {
	serverRow := notif(false)
	api := &fakeNotifyAPI{rows: []*models.Notification{serverRow}}
	s := NewSync(api, time.Hour, nil)

	stale := notif(false)
	s.Push(stale)
	s.MarkAsRead(context.Background(), stale.ID)

	s.refetch(context.Background())

	items := s.Notifications()
	require.Len(t, items, 1)
	assert.Equal(t, serverRow.ID, items[0].ID, "server list replaces cache wholesale")
	assert.Equal(t, 1, s.UnreadCount(), "override cleared by refetch")
}

func TestRefetchFailureKeepsCache(t *testing.T) {
	api := &fakeNotifyAPI{rows: []*models.Notification{notif(false)}}
	s := NewSync(api, time.Hour, nil)
	s.refetch(context.Background())
	require.Len(t, s.Notifications(), 1)

	api.mu.Lock()
	api.listErr = utils.NewAppError(utils.ErrNetwork, "connection reset", nil)
	api.mu.Unlock()

	s.refetch(context.Background())
	assert.Len(t, s.Notifications(), 1, "failed refetch leaves last good list")
}

func TestOnChangeFires(t *testing.T) {
	api := &fakeNotifyAPI{}
	var mu sync.Mutex
	calls := 0
	s := NewSync(api, time.Hour, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.Push(notif(false))
	s.MarkAllAsRead(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, calls, 2)
}

func (f *fakeNotifyAPI) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func TestMarkCallsTriggerReconcilingRefetch(t *testing.T) {
	a := notif(false)
	api := &fakeNotifyAPI{rows: []*models.Notification{a}}
	// An hour-long interval means any further fetch comes from the
	// mark call, not the ticker.
	s := NewSync(api, time.Hour, nil)
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return api.listCount() == 1 }, time.Second, 10*time.Millisecond)

	s.MarkAsRead(context.Background(), a.ID)
	require.Eventually(t, func() bool { return api.listCount() >= 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.UnreadCount(), "server view adopted after the refetch")

	before := api.listCount()
	s.MarkAllAsRead(context.Background())
	require.Eventually(t, func() bool { return api.listCount() > before }, time.Second, 10*time.Millisecond)
}

func TestStartStop(t *testing.T) {
	api := &fakeNotifyAPI{rows: []*models.Notification{notif(false)}}
	s := NewSync(api, time.Hour, nil)

	s.Start(context.Background())
	// Initial refetch happens on start.
	require.Eventually(t, func() bool {
		return len(s.Notifications()) == 1
	}, time.Second, 10*time.Millisecond)
	s.Stop()
}
