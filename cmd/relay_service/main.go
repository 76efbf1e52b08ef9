package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"room_relay_service/internal/relay/app"
	"room_relay_service/internal/relay/repository"
	"room_relay_service/internal/relay/router"
	"room_relay_service/pkg/config"
	"room_relay_service/pkg/database"
	"room_relay_service/pkg/logger"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.RelayService, config.EnvConfig.RelayServiceLogPath)
	cfg := config.LoadConfig[config.Relay](config.EnvConfig.RelayService, config.EnvConfig.RelayServiceYAMLPath)

	ctx := context.Background()

	// Message store: postgres is the default backend, mongo is the
	// alternate. Both satisfy the same contract.
	var store repository.MessageStore
	switch cfg.Store.Backend {
	case "mongo":
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.Mongo.User, cfg.Mongo.Password, cfg.Mongo.Host, cfg.Mongo.Port)
		mongo, err := database.NewMongoDB(ctx,
			database.Connection{
				ConnectStr:    uri,
				RetryCount:    cfg.Mongo.RetryCount,
				RetryInterval: time.Duration(cfg.Mongo.RetryInterval) * time.Second,
			},
			cfg.Mongo.Database)
		if err != nil {
			logger.Log.Fatal(
				"Unable to connect to mongoDB database after retries",
				zap.String("address", fmt.Sprintf("[%s]", uri)),
				zap.Error(err),
			)
		}
		defer mongo.Close(ctx)
		store = repository.NewMongoMessageStore(mongo.Database)

	default:
		connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
		pool, err := database.NewDatabaseConnection(database.Connection{
			ConnectStr:    connStr,
			RetryCount:    cfg.PostgreSQL.RetryCount,
			RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal(
				"Unable to connect to postgreSQL database after retries",
				zap.Error(err),
			)
		}
		defer pool.Close()
		if err := repository.MigratePostgres(ctx, pool); err != nil {
			logger.Log.Fatal("failed to migrate messages table", zap.Error(err))
		}
		store = repository.NewPostgresMessageStore(pool)
	}

	// Redis carries the per-room fan-out channels and presence registry.
	redisClient, err := database.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	channel := repository.NewRoomChannel(redisClient)

	roomUC := app.NewRoomUseCase(store, channel)
	sendMessageUC := app.NewSendMessageUseCase(store, channel)

	// Body limit leaves headroom over the 5 MiB payload bound.
	r := fiber.New(fiber.Config{BodyLimit: 8 * 1024 * 1024})

	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.RelayServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewRelayWebsocketHandler(roomUC, sendMessageUC),
		app.NewRoomHTTPHandler(roomUC, sendMessageUC, cfg.BaseURL))

	port := ":" + cfg.Port
	logger.Log.Info("Relay Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal(fmt.Sprintf("Failed to start Fiber: %v", err))
	}
}
