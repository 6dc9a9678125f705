package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"vcp/sttrelay/internal/framework"
	"vcp/sttrelay/internal/jobs"
	"vcp/sttrelay/pkg/config"
	"vcp/sttrelay/pkg/logger"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx        context.Context
	cfg        *config.Config
	deps       *jobs.Deps
	workers    []Worker
	closing    *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     logger.Logger
}

// NewManagerInstance 创建 Manager
// deps 为装配好的任务处理依赖（扫描服务、队列客户端、回调队列）
func NewManagerInstance(cfg *config.Config, deps *jobs.Deps, log logger.Logger) (Manager, error) {
	ctx := context.Background()

	if cfg.Lmstfy.TriggerQueue == "" {
		return nil, fmt.Errorf("trigger_queue is required in lmstfy config")
	}

	log.Infof(ctx, "[Manager] Initialized with trigger_queue: %s, callback_queue: %s",
		cfg.Lmstfy.TriggerQueue, cfg.Lmstfy.CallbackQueue)

	return &ManagerInstance{
		ctx:        ctx,
		cfg:        cfg,
		deps:       deps,
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		workers:    make([]Worker, 0),
		logger:     log,
	}, nil
}

// Start 启动 Manager
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	// 1. 加载 Worker
	if err := m.loadWorkers(); err != nil {
		return fmt.Errorf("failed to load workers: %w", err)
	}

	m.logger.Infof(m.ctx, "[Manager] All workers loaded, count: %d", len(m.workers))

	// 2. 启动所有 Worker（每个 Worker 在独立 goroutine）
	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Start()
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}

	m.logger.Infof(m.ctx, "[Manager] Start success")

	// 3. 阻塞等待退出信号
	<-m.shutdownCh

	return nil
}

// Shutdown 优雅退出
func (m *ManagerInstance) Shutdown() {
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	// 原子操作，保证并发安全
	if m.closing.CAS(false, true) {
		// 1. 所有 Worker 安全退出
		for _, worker := range m.workers {
			m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", worker.GetName())
			worker.Shutdown()
		}

		// 2. 等待所有 Worker 退出
		m.wg.Wait()

		// 3. 关闭信号通道
		close(m.shutdownCh)

		m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
	}
}

// loadWorkers 加载 Worker（触发队列单 Worker）
func (m *ManagerInstance) loadWorkers() error {
	workerCfg := m.cfg.Worker

	subCfg := &framework.SubscriberConfig{
		QueueName:    m.cfg.Lmstfy.TriggerQueue,
		Concurrency:  workerCfg.Subscriber.Threads,
		Rate:         workerCfg.Subscriber.Rate,
		Timeout:      workerCfg.Subscriber.Timeout,
		TTR:          workerCfg.Subscriber.TTR,
		ErrorBackoff: workerCfg.Subscriber.ErrorBackoff,
	}

	procCfg := &framework.ProcessorConfig{
		Concurrency: workerCfg.Processor.Threads,
		BufferSize:  workerCfg.Processor.BufferSize,
		Timeout:     workerCfg.Processor.Timeout,
	}

	getProcess := jobs.GetProcess(m.deps)

	worker, err := NewWorkerInstance(
		m.ctx,
		workerCfg.Name,
		subCfg,
		procCfg,
		m.deps.LmstfyClient, // MessageSource
		getProcess,
		m.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker %s: %w", workerCfg.Name, err)
	}

	m.workers = append(m.workers, worker)
	return nil
}
