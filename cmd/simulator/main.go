package main

import (
	"context"
	"flag"
	"log"
	"time"

	"mangrove/internal/config"
	"mangrove/simulator"
)

func main() {
	var (
		engineURL = flag.String("url", "http://localhost:8080", "engine base URL")
		users     = flag.Int("users", 10, "number of simulated users")
		posts     = flag.Int("posts", 5, "number of shared posts")
		duration  = flag.Duration("duration", 5*time.Minute, "how long to run")
	)
	flag.Parse()

	// Undo window and poll cadence come from the same env knobs the
	// engine reads, so both sides of a run agree.
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	simCfg := simulator.SimConfig{
		NumUsers:         *users,
		NumPosts:         *posts,
		SimulationTime:   *duration,
		CommentFrequency: 12.0,
		ReplyRate:        0.5,
		MentionRate:      0.25,
		EditRate:         0.15,
		DeleteRate:       0.1,
		UndoRate:         0.4,
		UndoWindow:       cfg.Client.UndoWindow,
		PollInterval:     cfg.Client.PollInterval,
		EngineURL:        *engineURL,
	}

	log.Printf("Starting simulation against %s: %d users, %d posts, %v",
		simCfg.EngineURL, simCfg.NumUsers, simCfg.NumPosts, simCfg.SimulationTime)

	sim := simulator.NewSimulator(simCfg)
	ctx, cancel := context.WithTimeout(context.Background(), simCfg.SimulationTime)
	defer cancel()

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	m := sim.GetMetrics()
	log.Printf("Simulation finished in %v", m.Elapsed.Round(time.Second))
	log.Printf("- Requests: %d (%d failed)", m.TotalRequests, m.FailedRequests)
	log.Printf("- Comments: %d, edits: %d, deletes: %d, undos: %d",
		m.TotalComments, m.TotalEdits, m.TotalDeletes, m.TotalUndos)
	log.Printf("- Notifications seen: %d, websocket pushes: %d",
		m.NotificationsSeen, m.PushesReceived)
}
