// Command mongoctl dials a server, optionally authenticates, and pings
// it — a minimal smoke test for the ambient stack (config loading,
// logging, connect/auth) wired around the driver.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	mongo "github.com/burdmongo/wiredriver"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, relying on process environment")
	}

	addr := getenv("MONGO_ADDR", "127.0.0.1:27017")
	db := getenv("MONGO_DB", "test")
	user := os.Getenv("MONGO_USER")
	password := os.Getenv("MONGO_PASSWORD")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := connectWithRetry(ctx, addr, db)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if user != "" {
		if err := session.Authenticate(ctx, user, password); err != nil {
			log.Fatalf("authenticate: %v", err)
		}
	}

	var pong struct {
		Ok float64 `bson:"ok"`
	}
	if err := session.Run1(ctx, "ping", &pong); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Printf("connected to %s db=%s ping ok=%v", addr, db, pong.Ok)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutting down")
}

func connectWithRetry(ctx context.Context, addr, db string) (*mongo.Session, error) {
	const maxAttempts = 5
	backoff := 200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		session, err := mongo.Connect(ctx, addr, db, mongo.Options{})
		if err == nil {
			return session, nil
		}
		lastErr = err
		log.Printf("connect attempt %d/%d failed: %v", attempt, maxAttempts, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}
