package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mangrove/internal/config"
	"mangrove/internal/database"
	"mangrove/internal/engine"
	"mangrove/internal/handlers"
	"mangrove/internal/middleware"
	"mangrove/internal/utils"
	"mangrove/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(ctx); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	metrics := utils.NewMetricsCollector()

	hub := websocket.NewHub()
	go hub.Run()

	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, db, hub, metrics)

	server := handlers.NewServer(system, system.Root, eng, metrics, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HandleHealth())
	mux.HandleFunc("/user/register", server.HandleRegisterUser())
	mux.HandleFunc("/user/login", server.HandleLoginUser())
	mux.HandleFunc("/user/profile", server.HandleUserProfile())
	mux.HandleFunc("/post", server.HandlePost())
	mux.HandleFunc("/posts", server.HandleRecentPosts())
	mux.HandleFunc("/comment", server.HandleComment())
	mux.HandleFunc("/comments", server.HandleGetPostComments())
	mux.HandleFunc("/notifications", server.HandleNotifications())
	mux.HandleFunc("/notifications/read", server.HandleMarkNotificationsRead())
	mux.HandleFunc("/notifications/read-all", server.HandleMarkAllNotificationsRead())
	mux.HandleFunc("/ws", server.HandleWebSocket())

	handler := middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.AllowedOrigins))(
		middleware.AuthMiddleware(mux),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s (db: %s)", addr, cfg.Database.Type)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}

// openDatabase connects to the backend selected by DB_TYPE and makes
// sure its schema or indexes exist.
func openDatabase(cfg *config.DatabaseConfig) (database.DBAdapter, error) {
	switch cfg.Type {
	case "postgres":
		db, err := database.NewPostgresDB(cfg.URI)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.InitializeTables(ctx); err != nil {
			return nil, err
		}
		return db, nil
	case "mongo":
		db, err := database.NewMongoDB(cfg.URI)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.EnsureUserIndexes(ctx); err != nil {
			return nil, err
		}
		if err := db.EnsureCommentIndexes(ctx); err != nil {
			return nil, err
		}
		if err := db.EnsureNotificationIndexes(ctx); err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}
