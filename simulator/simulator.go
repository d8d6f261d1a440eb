package simulator

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangrove/internal/client"
	"mangrove/internal/client/feed"
	"mangrove/internal/client/notify"
	"mangrove/internal/models"
)

// SimConfig tunes a simulation run.
type SimConfig struct {
	NumUsers         int
	NumPosts         int
	SimulationTime   time.Duration
	CommentFrequency float64 // comments per user per minute
	ReplyRate        float64 // fraction of comments that reply to an existing one
	MentionRate      float64 // fraction of comments that @mention another user
	EditRate         float64 // fraction of actions that edit an own comment
	DeleteRate       float64 // fraction of actions that delete an own comment
	UndoRate         float64 // fraction of deletes undone inside the window
	UndoWindow       time.Duration
	PollInterval     time.Duration // notification poll cadence per user
	EngineURL        string
}

// SimulationStats aggregates counters across all simulated users.
type SimulationStats struct {
	mu                sync.Mutex
	StartTime         time.Time
	TotalRequests     int64
	FailedRequests    int64
	TotalComments     int64
	TotalEdits        int64
	TotalDeletes      int64
	TotalUndos        int64
	NotificationsSeen int64
	PushesReceived    int64
}

func (s *SimulationStats) record(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalRequests++
	if failed {
		s.FailedRequests++
	}
}

func (s *SimulationStats) add(counter *int64, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*counter += n
}

// Metrics is a copyable snapshot of the stats.
type Metrics struct {
	Elapsed           time.Duration
	TotalRequests     int64
	FailedRequests    int64
	TotalComments     int64
	TotalEdits        int64
	TotalDeletes      int64
	TotalUndos        int64
	NotificationsSeen int64
	PushesReceived    int64
}

// SimulatedUser is one account driving the client stack: an HTTP
// client, per-post optimistic feed engines, a notification cache, and
// a websocket listener feeding it.
type SimulatedUser struct {
	ID       uuid.UUID
	Username string
	Email    string

	Client *client.Client
	Sync   *notify.Sync

	undoWindow time.Duration

	mu      sync.Mutex
	feeds   map[uuid.UUID]*feed.Engine
	ownIDs  []uuid.UUID // comments this user created, by local id
	deleted map[uuid.UUID]bool
}

// Simulator drives NumUsers concurrent users against a live engine.
type Simulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	posts  []uuid.UUID
}

func NewSimulator(config SimConfig) *Simulator {
	if config.UndoWindow <= 0 {
		config.UndoWindow = feed.DefaultUndoWindow
	}
	if config.PollInterval <= 0 {
		config.PollInterval = notify.DefaultPollInterval
	}
	return &Simulator{
		config: config,
		stats:  &SimulationStats{StartTime: time.Now()},
	}
}

// Setup registers the users, logs them in, creates the shared posts
// and starts each user's notification machinery.
func (s *Simulator) Setup(ctx context.Context) error {
	run := time.Now().UnixNano()

	for i := 0; i < s.config.NumUsers; i++ {
		username := fmt.Sprintf("sim_user_%d_%d", run, i)
		email := fmt.Sprintf("%s@simulation.test", username)

		c := client.New(s.config.EngineURL, "")
		user, err := c.Register(ctx, username, email, "simulation-password")
		s.stats.record(err != nil)
		if err != nil {
			return fmt.Errorf("register %s: %w", username, err)
		}

		login, err := c.Login(ctx, email, "simulation-password")
		s.stats.record(err != nil)
		if err != nil {
			return fmt.Errorf("login %s: %w", username, err)
		}
		if !login.Success {
			return fmt.Errorf("login %s rejected: %s", username, login.Error)
		}

		su := &SimulatedUser{
			ID:         user.ID,
			Username:   username,
			Email:      email,
			Client:     c,
			undoWindow: s.config.UndoWindow,
			feeds:      make(map[uuid.UUID]*feed.Engine),
			deleted:    make(map[uuid.UUID]bool),
		}
		su.Sync = notify.NewSync(c, s.config.PollInterval, nil)
		s.users = append(s.users, su)
	}

	for i := 0; i < s.config.NumPosts; i++ {
		author := s.users[i%len(s.users)]
		post, err := author.Client.CreatePost(ctx,
			fmt.Sprintf("Simulated post %d", i),
			"Seed content for the comment swarm.")
		s.stats.record(err != nil)
		if err != nil {
			return fmt.Errorf("create post %d: %w", i, err)
		}
		s.posts = append(s.posts, post.ID)
	}

	log.Printf("Setup complete: %d users, %d posts", len(s.users), len(s.posts))
	return nil
}

// Run starts listeners, syncs and per-user activity loops, then
// blocks until the context expires.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.Setup(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, u := range s.users {
		u := u

		token := u.Client.Token()
		listener := client.NewListener(s.config.EngineURL, token, func(n *models.Notification) {
			s.stats.add(&s.stats.PushesReceived, 1)
			u.Sync.Push(n)
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Run(ctx)
		}()

		u.Sync.Start(ctx)

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runUser(ctx, u)
		}()
	}

	<-ctx.Done()
	for _, u := range s.users {
		u.Sync.Stop()
	}
	wg.Wait()
	return nil
}

// GetMetrics snapshots the run counters.
func (s *Simulator) GetMetrics() Metrics {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	return Metrics{
		Elapsed:           time.Since(s.stats.StartTime),
		TotalRequests:     s.stats.TotalRequests,
		FailedRequests:    s.stats.FailedRequests,
		TotalComments:     s.stats.TotalComments,
		TotalEdits:        s.stats.TotalEdits,
		TotalDeletes:      s.stats.TotalDeletes,
		TotalUndos:        s.stats.TotalUndos,
		NotificationsSeen: s.stats.NotificationsSeen,
		PushesReceived:    s.stats.PushesReceived,
	}
}

// feedFor lazily builds the user's optimistic engine for a post,
// seeding it from a server fetch.
func (u *SimulatedUser) feedFor(ctx context.Context, postID uuid.UUID) (*feed.Engine, error) {
	u.mu.Lock()
	if eng, ok := u.feeds[postID]; ok {
		u.mu.Unlock()
		return eng, nil
	}
	u.mu.Unlock()

	tree, err := u.Client.GetPostComments(ctx, postID)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if eng, ok := u.feeds[postID]; ok {
		return eng, nil
	}
	eng := feed.NewEngine(postID, feed.Identity{UserID: u.ID, Username: u.Username}, u.Client, nil, u.undoWindow)
	eng.Load(tree)
	u.feeds[postID] = eng
	return eng, nil
}

func (u *SimulatedUser) rememberComment(id uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ownIDs = append(u.ownIDs, id)
}

// randomOwnComment returns one of the user's live local comment ids.
func (u *SimulatedUser) randomOwnComment(rng *rand.Rand) (uuid.UUID, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	live := make([]uuid.UUID, 0, len(u.ownIDs))
	for _, id := range u.ownIDs {
		if !u.deleted[id] {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		return uuid.Nil, false
	}
	return live[rng.Intn(len(live))], true
}

func (u *SimulatedUser) markDeleted(id uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted[id] = true
}

func (u *SimulatedUser) markRestored(id uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.deleted, id)
}
