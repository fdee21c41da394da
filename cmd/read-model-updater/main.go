package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/kaitranntt/jobhunt-sub002/domain"
	"github.com/kaitranntt/jobhunt-sub002/updater"
)

func main() {
	_ = godotenv.Load()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("read model updater starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	commandQueue := os.Getenv("COMMAND_QUEUE")
	appsTable := os.Getenv("APPLICATIONS_TABLE")
	settingsTable := os.Getenv("SETTINGS_TABLE")
	if connStr == "" || commandQueue == "" || appsTable == "" || settingsTable == "" {
		log.Fatal("missing storage config")
	}

	store, err := updater.New(connStr, commandQueue, appsTable, settingsTable)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		redisOpts = &redis.Options{Addr: redisConn}
	}
	rc := redis.NewClient(redisOpts)

	updatesChannel := os.Getenv("UPDATES_CHANNEL")
	if updatesChannel == "" {
		updatesChannel = "board-updates"
	}

	orch := updater.NewOrchestrator(
		updater.NewApplicationService(store),
		updater.NewSettingsService(store),
	)
	cache := updater.NewCacheInvalidator(rc)

	ctx := context.Background()
	for {
		msg, err := store.Dequeue(ctx)
		if err != nil {
			log.Errorf("dequeue: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			time.Sleep(time.Second)
			continue
		}
		var env domain.CommandEnvelope
		if err := sonic.UnmarshalString(*msg.MessageText, &env); err != nil {
			log.Errorf("malformed command message %s: %v", *msg.MessageID, err)
		} else if err := updater.ProcessCommand(ctx, orch, cache, rc, updatesChannel, env); err != nil {
			log.WithFields(log.Fields{"user": env.UserID, "command": env.Command.ID}).Errorf("process: %v", err)
		}
		if err := store.Delete(ctx, *msg.MessageID, *msg.PopReceipt); err != nil {
			log.Errorf("delete message: %v", err)
		}
	}
}
