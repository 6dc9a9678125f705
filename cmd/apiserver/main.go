package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vcp/sttrelay/internal/app/domains/modules/mddispatch"
	"vcp/sttrelay/internal/app/domains/modules/mdnotify"
	"vcp/sttrelay/internal/app/domains/modules/mdrender"
	"vcp/sttrelay/internal/app/domains/repo/rpcontrol"
	"vcp/sttrelay/internal/app/domains/repo/rpvisit"
	"vcp/sttrelay/internal/app/domains/services/svrelay"
	"vcp/sttrelay/internal/app/infra/persistence/mysql"
	"vcp/sttrelay/internal/app/infra/persistence/redis"
	"vcp/sttrelay/internal/app/server/handlers/relay"
	"vcp/sttrelay/internal/app/server/routers"
	"vcp/sttrelay/pkg/config"
	"vcp/sttrelay/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	// 3. 初始化基础设施
	db, err := mysql.NewDB(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer mysql.Close(db)
	zapLogger.Infof(ctx, "Database connected")

	// Redis 可选：未配置时不启用结果通知与 Smart Wait
	var notifier svrelay.ResultNotifier
	var waiter relay.ResultWaiter
	if cfg.Redis.Addr != "" {
		pubsub, err := redis.NewPubSubClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to init redis: %v", err)
		}
		defer pubsub.Close()
		notifyModule := mdnotify.NewNotifyModule(pubsub, zapLogger)
		notifier = notifyModule
		waiter = notifyModule
		zapLogger.Infof(ctx, "Redis connected")
	}

	// 4. 初始化 Repository 层
	visitRepo := rpvisit.NewVisitRepository(db, cfg.STT.LockTimeout, cfg.STT.MaxAttempts)
	controlRepo := rpcontrol.NewControlRepository(db, cfg.STT.LockTimeout)

	// 5. 初始化 Module 与 Service 层
	renderer := mdrender.NewRenderModule(cfg.STT.RenderURL, cfg.STT.Timeout, zapLogger)
	dispatcher := mddispatch.NewDispatchModule(cfg.STT.URL, cfg.STT.Token, cfg.STT.Timeout, cfg.STT.TestMode, zapLogger)
	builder := svrelay.NewPayloadBuilder(cfg.STT.Timezone)

	orchestrator := svrelay.NewOrchestrator(visitRepo, controlRepo, renderer, dispatcher,
		notifier, builder, cfg.STT.RetryDelay, zapLogger)
	scanner := svrelay.NewScanner(visitRepo, controlRepo, orchestrator, zapLogger)

	// 6. 初始化 HTTP Server
	relayHandler := relay.NewRelayHandler(scanner, orchestrator, controlRepo, waiter, zapLogger)
	engine := routers.SetupRoutes(relayHandler, zapLogger)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		zapLogger.Infof(ctx, "Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 7. 优雅停机处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zapLogger.Infof(ctx, "Received shutdown signal, gracefully shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Errorf(ctx, "HTTP server shutdown error: %v", err)
		}
	case err := <-serverErrChan:
		log.Fatalf("HTTP server error: %v", err)
	}

	zapLogger.Infof(ctx, "Application stopped")
}
