package main

import (
	"context"
	"os"
	"time"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/JoelGresham/teamPoll/config"
	"github.com/JoelGresham/teamPoll/internal/commands"
	"github.com/JoelGresham/teamPoll/internal/events"
	"github.com/JoelGresham/teamPoll/internal/handler"
	"github.com/JoelGresham/teamPoll/internal/jobs"
	"github.com/JoelGresham/teamPoll/internal/ratelimit"
	pollredis "github.com/JoelGresham/teamPoll/internal/redis"
	"github.com/JoelGresham/teamPoll/internal/registry"
	"github.com/JoelGresham/teamPoll/internal/repository"
	"github.com/JoelGresham/teamPoll/internal/server"
	"github.com/JoelGresham/teamPoll/internal/services"
	"github.com/JoelGresham/teamPoll/internal/websocket"
	"github.com/JoelGresham/teamPoll/pkg/database"
	"github.com/JoelGresham/teamPoll/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	if err := run(cfg, l); err != nil {
		l.Errorf("server exited: %v", err)
		l.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, l *logger.Logger) error {
	ctx := context.Background()

	db, dialect, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(db, dialect); err != nil {
		return err
	}
	l.Infof("database ready (%s)", dialect)

	var redisClient *goredis.Client
	if cfg.RedisEnabled() {
		redisClient, err = pollredis.Connect(ctx, redisConfig(cfg), 5*time.Second)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		l.Infof("redis connected at %s:%s", cfg.RedisHost, cfg.RedisPort)
	}

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = pollredis.NewRateLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)
	} else {
		memLimiter := ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		memLimiter.StartCleanup(cfg.RateLimitWindow)
		defer memLimiter.Stop()
		limiter = memLimiter
	}

	polls := repository.NewPollRepository(db, dialect)
	responses := repository.NewResponseRepository(db, dialect)
	svc := services.NewPollService(polls, responses, registry.New(), limiter,
		services.WithLogger(l),
	)

	bus := commands.NewBus()
	svc.RegisterHandlers(bus)

	wsLogger := websocket.NewLogger(l.Logger)
	var bridge *websocket.RedisBridge
	if redisClient != nil {
		bridge = websocket.NewRedisBridge(events.NewRedisMirror(redisClient), wsLogger)
		defer bridge.Close()
	}
	hub := websocket.NewHub()
	gateway := websocket.NewGateway(hub, bus, bridge, wsLogger)
	svc.SetFanout(gateway)

	connectLimiter := ratelimit.NewMemoryLimiter(server.ConnectLimit, time.Minute)
	connectLimiter.StartCleanup(time.Minute)
	defer connectLimiter.Stop()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Admin:  handler.NewAdminHandler(svc, bus),
		Poll:   handler.NewPollHandler(svc, bus),
		Socket: websocket.NewHandler(hub, gateway, wsLogger, cfg.AllowedOrigins),
	}, server.Deps{DB: db, ConnectLimiter: connectLimiter})
	srv.OnShutdown(hub.CloseAll)

	retention := jobs.NewRetentionJob(svc, cfg.RetentionHorizon(), l)
	var runner jobs.Runner
	if redisClient != nil {
		runner = jobs.NewAsynqRunner(asynq.RedisClientOpt{
			Addr:     redisConfig(cfg).Addr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, retention, cfg.RetentionInterval, l)
	} else {
		runner = jobs.NewTickerRunner(retention, cfg.RetentionInterval)
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	return srv.Start(ctx)
}

func redisConfig(cfg *config.Config) pollredis.Config {
	return pollredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
