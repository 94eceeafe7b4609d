package main // entry point: wires config, storage, cache, events and routes

import (
    "log"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/jam-queue/internal/cache"
    "github.com/iliyamo/jam-queue/internal/config"
    "github.com/iliyamo/jam-queue/internal/database"
    "github.com/iliyamo/jam-queue/internal/handler"
    "github.com/iliyamo/jam-queue/internal/metadata"
    "github.com/iliyamo/jam-queue/internal/middleware"
    "github.com/iliyamo/jam-queue/internal/notifier"
    "github.com/iliyamo/jam-queue/internal/queue"
    "github.com/iliyamo/jam-queue/internal/repository"
    "github.com/iliyamo/jam-queue/internal/router"
    "github.com/iliyamo/jam-queue/internal/service"
)

func main() {
    // .env is a development convenience; production sets real env vars.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis is optional: a nil client degrades the cache to permanent
    // misses, the limiter to a pass-through and event fan-out to
    // in-process only.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable, running degraded (no cache, no rate limit, local events only)")
    }
    store := cache.New(config.LoadCacheConfig(), rdb)

    events := notifier.New(notifier.NewBroker(), rdb)
    events.Start()
    defer events.Close()

    // Durable submission log consumer; keeps retrying across broker
    // restarts on its own.
    go func() {
        if err := queue.StartTrackConsumer(); err != nil {
            log.Printf("track consumer stopped: %v", err)
        }
    }()

    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    jams := repository.NewJamRepo(db)
    tracks := repository.NewTrackRepo(db)
    votes := repository.NewVoteRepo(db)
    queues := repository.NewQueueRepo(db)

    coordinator := service.NewCoordinator(
        jams, tracks, votes, queues, users,
        store, events, metadata.NewOEmbedClient(),
    )

    e := echo.New()
    e.HideBanner = true
    e.Use(echomw.Recover())
    e.Use(echomw.Logger())

    protected := middleware.JWTAuth(cfg)
    limited := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

    router.RegisterRoutes(e)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), protected)
    router.RegisterJam(e,
        handler.NewJamHandler(coordinator),
        handler.NewEventsHandler(coordinator, events),
        protected, limited,
    )

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
