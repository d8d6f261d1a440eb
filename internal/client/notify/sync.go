package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangrove/internal/models"
)

// DefaultPollInterval is how often the sync refetches when no push
// events arrive.
const DefaultPollInterval = 30 * time.Second

// API is the server surface the sync pulls from. Mark calls are also
// issued through it; the server remains authoritative for read state.
type API interface {
	ListNotifications(ctx context.Context, filter models.NotificationFilter, limit, offset int) (*models.NotificationPage, error)
	MarkNotificationsRead(ctx context.Context, ids []uuid.UUID) (int, error)
	MarkAllNotificationsRead(ctx context.Context) (int, error)
}

// Sync keeps a local mirror of the user's notification list, fed by
// periodic polling and by pushed events from the websocket listener.
// Reads are served from the cache; the server list always wins on the
// next refetch.
type Sync struct {
	mu  sync.Mutex
	api API

	items []*models.Notification
	// unreadOverride, when set, answers UnreadCount instead of the
	// cached rows. It exists so mark-as-read feels instant; any
	// refetch clears it because the server list is authoritative.
	unreadOverride *int

	interval time.Duration
	kick     chan struct{}
	onChange func()

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSync creates a stopped sync. A zero interval means
// DefaultPollInterval. onChange, when non-nil, fires after every cache
// update; it runs outside the lock.
func NewSync(api API, interval time.Duration, onChange func()) *Sync {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Sync{
		api:      api,
		items:    make([]*models.Notification, 0),
		interval: interval,
		kick:     make(chan struct{}, 1),
		onChange: onChange,
	}
}

// Start begins the poll loop. It refetches immediately, then on every
// tick and on every pushed event.
func (s *Sync) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.refetch(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refetch(ctx)
			case <-s.kick:
				s.refetch(ctx)
			}
		}
	}()
}

// Stop halts the poll loop and waits for it to exit.
func (s *Sync) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Push hands the sync a freshly delivered notification. The row is
// prepended so it is visible at once, and a refetch is kicked so the
// cache converges with the server ordering.
func (s *Sync) Push(n *models.Notification) {
	s.mu.Lock()
	for _, existing := range s.items {
		if existing.ID == n.ID {
			s.mu.Unlock()
			return
		}
	}
	s.items = append([]*models.Notification{n}, s.items...)
	s.unreadOverride = nil
	s.mu.Unlock()

	s.notifyChanged()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Notifications returns the cached list, newest first.
func (s *Sync) Notifications() []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadCount reports the number of unread rows, honoring any
// optimistic override from a recent mark call.
func (s *Sync) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreadOverride != nil {
		return *s.unreadOverride
	}
	count := 0
	for _, n := range s.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// MarkAsRead flips the given rows locally, tells the server, then
// kicks a refetch so the cache reconciles with the server's view
// right away instead of on the next poll tick.
func (s *Sync) MarkAsRead(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	s.mu.Lock()
	for i, n := range s.items {
		if wanted[n.ID] && !n.IsRead {
			cp := *n
			cp.IsRead = true
			s.items[i] = &cp
		}
	}
	override := s.countUnreadLocked()
	s.unreadOverride = &override
	s.mu.Unlock()
	s.notifyChanged()

	if _, err := s.api.MarkNotificationsRead(ctx, ids); err != nil {
		log.Printf("notify: mark read failed: %v", err)
	}
	s.Refresh()
}

// MarkAllAsRead flips every cached row locally, pins the unread count
// to zero, tells the server, then kicks a reconciling refetch.
func (s *Sync) MarkAllAsRead(ctx context.Context) {
	s.mu.Lock()
	for i, n := range s.items {
		if !n.IsRead {
			cp := *n
			cp.IsRead = true
			s.items[i] = &cp
		}
	}
	zero := 0
	s.unreadOverride = &zero
	s.mu.Unlock()
	s.notifyChanged()

	if _, err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		log.Printf("notify: mark all read failed: %v", err)
	}
	s.Refresh()
}

// Refresh forces an immediate refetch on the poll goroutine.
func (s *Sync) Refresh() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Sync) refetch(ctx context.Context) {
	page, err := s.api.ListNotifications(ctx, models.NotificationFilter{}, 0, 0)
	if err != nil {
		log.Printf("notify: refetch failed: %v", err)
		return
	}

	s.mu.Lock()
	s.items = page.Items
	// Server response replaces everything, including any optimistic
	// unread override still in effect.
	s.unreadOverride = nil
	s.mu.Unlock()
	s.notifyChanged()
}

func (s *Sync) countUnreadLocked() int {
	count := 0
	for _, n := range s.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func (s *Sync) notifyChanged() {
	if s.onChange != nil {
		s.onChange()
	}
}
