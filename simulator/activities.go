package simulator

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"mangrove/internal/client/feed"
	"mangrove/internal/models"
)

// runUser is one user's activity loop. Each tick rolls for an action:
// comment (possibly a reply, possibly with a mention), edit an own
// comment, or delete an own comment and maybe undo it.
func (s *Simulator) runUser(ctx context.Context, u *SimulatedUser) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(u.ID.ID())))

	perMinute := s.config.CommentFrequency
	if perMinute <= 0 {
		perMinute = 6
	}
	interval := time.Duration(float64(time.Minute) / perMinute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step(ctx, u, rng)
			s.drainNotifications(ctx, u, rng)
		}
	}
}

func (s *Simulator) step(ctx context.Context, u *SimulatedUser, rng *rand.Rand) {
	roll := rng.Float64()
	switch {
	case roll < s.config.EditRate:
		s.editOwnComment(u, rng)
	case roll < s.config.EditRate+s.config.DeleteRate:
		s.deleteOwnComment(u, rng)
	default:
		s.createComment(ctx, u, rng)
	}
}

func (s *Simulator) createComment(ctx context.Context, u *SimulatedUser, rng *rand.Rand) {
	postID := s.posts[rng.Intn(len(s.posts))]
	eng, err := u.feedFor(ctx, postID)
	s.stats.record(err != nil)
	if err != nil {
		log.Printf("%s: load feed: %v", u.Username, err)
		return
	}

	content := fmt.Sprintf("Comment from %s at %d", u.Username, time.Now().UnixNano())
	if rng.Float64() < s.config.MentionRate && len(s.users) > 1 {
		target := s.users[rng.Intn(len(s.users))]
		if target.ID != u.ID {
			content = fmt.Sprintf("Hey @%s, %s", target.Username, content)
		}
	}

	var id uuid.UUID
	if rng.Float64() < s.config.ReplyRate {
		if parent, ok := randomNode(eng.Tree(), rng); ok {
			id, err = eng.Reply(parent.ID, content)
		} else {
			id, err = eng.AddComment(content)
		}
	} else {
		id, err = eng.AddComment(content)
	}
	if err != nil {
		log.Printf("%s: comment rejected: %v", u.Username, err)
		return
	}

	u.rememberComment(id)
	s.stats.add(&s.stats.TotalComments, 1)
}

func (s *Simulator) editOwnComment(u *SimulatedUser, rng *rand.Rand) {
	id, ok := u.randomOwnComment(rng)
	if !ok {
		return
	}
	for _, eng := range u.feedsSnapshot() {
		if err := eng.EditComment(id, fmt.Sprintf("Edited by %s at %d", u.Username, time.Now().UnixNano())); err == nil {
			s.stats.add(&s.stats.TotalEdits, 1)
			return
		}
	}
}

func (s *Simulator) deleteOwnComment(u *SimulatedUser, rng *rand.Rand) {
	id, ok := u.randomOwnComment(rng)
	if !ok {
		return
	}
	for _, eng := range u.feedsSnapshot() {
		if err := eng.DeleteComment(id); err != nil {
			continue
		}
		u.markDeleted(id)
		s.stats.add(&s.stats.TotalDeletes, 1)

		if rng.Float64() < s.config.UndoRate {
			// Sleep inside the window, then change our mind.
			delay := time.Duration(rng.Int63n(int64(s.config.UndoWindow / 2)))
			eng := eng
			go func() {
				time.Sleep(delay)
				if eng.Undo(id) {
					u.markRestored(id)
					s.stats.add(&s.stats.TotalUndos, 1)
				}
			}()
		}
		return
	}
}

// drainNotifications occasionally reads and acknowledges what the
// sync layer has accumulated, the way a person would open the bell
// menu.
func (s *Simulator) drainNotifications(ctx context.Context, u *SimulatedUser, rng *rand.Rand) {
	if rng.Float64() > 0.3 {
		return
	}
	items := u.Sync.Notifications()
	s.stats.add(&s.stats.NotificationsSeen, int64(len(items)))
	for _, n := range items {
		if n.IsRead {
			continue
		}
		u.Sync.MarkAsRead(ctx, n.ID)
		// Read one at a time most of the time; sometimes sweep.
		if rng.Float64() < 0.8 {
			break
		}
	}
}

func (u *SimulatedUser) feedsSnapshot() []*feed.Engine {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*feed.Engine, 0, len(u.feeds))
	for _, eng := range u.feeds {
		out = append(out, eng)
	}
	return out
}

// randomNode picks a uniformly random node from the forest.
func randomNode(tree []*models.Comment, rng *rand.Rand) (*models.Comment, bool) {
	var flat []*models.Comment
	var walk func(nodes []*models.Comment)
	walk = func(nodes []*models.Comment) {
		for _, n := range nodes {
			flat = append(flat, n)
			walk(n.Children)
		}
	}
	walk(tree)
	if len(flat) == 0 {
		return nil, false
	}
	return flat[rng.Intn(len(flat))], true
}
