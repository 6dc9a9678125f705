package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vcp/sttrelay/internal/app/domains/modules/mddispatch"
	"vcp/sttrelay/internal/app/domains/modules/mdnotify"
	"vcp/sttrelay/internal/app/domains/modules/mdrender"
	"vcp/sttrelay/internal/app/domains/repo/rpcontrol"
	"vcp/sttrelay/internal/app/domains/repo/rpvisit"
	"vcp/sttrelay/internal/app/domains/services/svrelay"
	"vcp/sttrelay/internal/app/infra/persistence/mysql"
	"vcp/sttrelay/internal/app/infra/persistence/redis"
	"vcp/sttrelay/internal/jobs"
	"vcp/sttrelay/internal/worker"
	"vcp/sttrelay/pkg/config"
	"vcp/sttrelay/pkg/lmstfy"
	"vcp/sttrelay/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	log.Println("========================================")
	log.Println("  STT Relay Worker Starting...")
	log.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	log.Printf("Config loaded: %s, env: %s, log_level: %s\n", cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)

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

	var notifier svrelay.ResultNotifier
	var runNotifier jobs.RunNotifier
	if cfg.Redis.Addr != "" {
		pubsub, err := redis.NewPubSubClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to init redis: %v", err)
		}
		defer pubsub.Close()
		notifyModule := mdnotify.NewNotifyModule(pubsub, zapLogger)
		notifier = notifyModule
		runNotifier = notifyModule
		zapLogger.Infof(ctx, "Redis connected")
	}

	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		log.Fatalf("Failed to create lmstfy client: %v", err)
	}
	zapLogger.Infof(ctx, "Lmstfy client initialized")

	// 4. 装配投递链路
	visitRepo := rpvisit.NewVisitRepository(db, cfg.STT.LockTimeout, cfg.STT.MaxAttempts)
	controlRepo := rpcontrol.NewControlRepository(db, cfg.STT.LockTimeout)

	renderer := mdrender.NewRenderModule(cfg.STT.RenderURL, cfg.STT.Timeout, zapLogger)
	dispatcher := mddispatch.NewDispatchModule(cfg.STT.URL, cfg.STT.Token, cfg.STT.Timeout, cfg.STT.TestMode, zapLogger)
	builder := svrelay.NewPayloadBuilder(cfg.STT.Timezone)

	orchestrator := svrelay.NewOrchestrator(visitRepo, controlRepo, renderer, dispatcher,
		notifier, builder, cfg.STT.RetryDelay, zapLogger)
	scanner := svrelay.NewScanner(visitRepo, controlRepo, orchestrator, zapLogger)

	deps := &jobs.Deps{
		Scanner:       scanner,
		LmstfyClient:  lmstfyClient,
		CallbackQueue: cfg.Lmstfy.CallbackQueue,
		Notifier:      runNotifier,
		Logger:        zapLogger,
	}

	// 5. 创建 Manager
	mgr, err := worker.NewManagerInstance(cfg, deps, zapLogger)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	// 6. 启动 Manager（goroutine）
	go func() {
		if err := mgr.Start(); err != nil {
			log.Fatalf("Manager start failed: %v", err)
		}
	}()

	log.Println("Worker started. Press Ctrl+C to shutdown.")

	// 7. 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Println("========================================")
	log.Printf("  Received signal: %v\n", sig)
	log.Println("  Shutting down Worker...")
	log.Println("========================================")

	// 8. 优雅关闭 Manager
	mgr.Shutdown()

	fmt.Println("========================================")
	fmt.Println("  Worker exited gracefully")
	fmt.Println("========================================")
}
