package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yusufmusharrafm/attend-snap-track-now/internal/config"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/metrics"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/queue"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/record"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/store"
)

// Worker consumes accepted attendance records from the queue, archives them
// in Postgres and keeps the daily summary counters fresh. Deliveries are
// at-least-once; the archive's unique index absorbs duplicates.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:records")
	} else {
		log.Println("warning: memory queue selected; the worker only sees records published in-process")
		q = queue.NewInMemory(64)
	}

	var archive record.Sink
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable, archiving to memory: %v", err)
		archive = record.NewMemory()
	} else {
		defer db.Close()
		pg := record.NewPostgresSink(db.Client)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("schema init failed: %v", err)
		}
		archive = pg
	}

	summary := record.NewRedisSummary(redisClient.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for records...")
	for msg := range messages {
		if msg.Type != "record" {
			continue
		}

		var rec record.Record
		if err := json.Unmarshal(msg.Body, &rec); err != nil {
			log.Printf("bad record payload: %v", err)
			continue
		}

		if err := archive.Append(ctx, rec); err != nil {
			log.Printf("archive append failed for %s: %v", rec.ID, err)
			continue
		}
		if err := summary.Bump(ctx, rec); err != nil {
			log.Printf("summary bump failed for %s: %v", rec.ID, err)
		}
		metrics.RecordsArchived.Inc()
		log.Printf("archived record %s (%s / %s period %d)", rec.ID, rec.StudentID, rec.SubjectID, rec.Period)
	}

	log.Println("worker stopped")
}
