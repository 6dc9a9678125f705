package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/google/uuid"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/services/svrelay"
	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/lmstfy"
	"vcp/sttrelay/pkg/lmstfyx"
	"vcp/sttrelay/pkg/logger"
)

// RelayRunner 投递服务依赖（批量扫描与单凭证重投）
type RelayRunner interface {
	Run(ctx context.Context, params svrelay.RunParams) (*etrelay.RunReport, error)
	RetryVoucher(ctx context.Context, voucherCode string) (*etrelay.SendOutcome, error)
}

// RunNotifier 批次回调的 Redis 通知依赖（尽力而为）
type RunNotifier interface {
	NotifyRunCallback(ctx context.Context, callback *model.RelayRunCallback)
}

// Deps 任务处理依赖集合
type Deps struct {
	Scanner       RelayRunner
	LmstfyClient  *lmstfy.Client
	CallbackQueue string
	Notifier      RunNotifier // 可为 nil：未配置 Redis 时只走回调队列
	Logger        logger.Logger
}

// GetProcess 返回核心处理函数（注入到 Processor）
func GetProcess(deps *Deps) lmstfyx.Proc {
	handlers := HandlerMap(deps)
	log := deps.Logger

	return func(ctx context.Context, lmstfyJob *client.Job) *lmstfyx.JobResp {
		startTime := time.Now()

		// 1. 解析 Job
		data, err := parseJob(lmstfyJob)
		if err != nil {
			log.Errorf(ctx, "[GetProcess] parseJob failed: %v", err)
			return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
		}

		// 2. 注入 TraceID 等元信息到 Context
		ctx = context.WithValue(ctx, logger.CtxKeyTraceID, data.RequestID)
		ctx = context.WithValue(ctx, logger.CtxKeyActionType, data.ActionType)

		log.Infof(ctx, "[GetProcess] Processing job: action_type=%s, request_id=%s, id=%s",
			data.ActionType, data.RequestID, data.ID)

		// 3. 从路由表获取 Handler
		handler, ok := handlers[data.ActionType]
		if !ok {
			log.Errorf(ctx, "[GetProcess] handler not found for action_type: %s", data.ActionType)
			return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
		}

		// 4. 调用 Handler（捕获 panic）
		resp := &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
		var callback *model.RelayRunCallback
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf(ctx, "[GetProcess] handler panic: %v", r)
					resp = &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
				}
			}()

			cb, action := handler.Handle(ctx, data)
			callback = cb
			resp = &lmstfyx.JobResp{Action: action, Data: marshalCallback(cb)}
		}()

		// 5. 发布回调消息（尽力而为，失败只记日志）：
		// 回调队列供触发方拉取，Redis 频道供 Smart Wait 订阅方即时感知
		if callback != nil {
			if deps.CallbackQueue != "" {
				if err := deps.LmstfyClient.Publish(deps.CallbackQueue, resp.Data, 0, 0); err != nil {
					log.Errorf(ctx, "[GetProcess] publish callback failed: queue=%s, err=%v",
						deps.CallbackQueue, err)
				}
			}
			if deps.Notifier != nil {
				deps.Notifier.NotifyRunCallback(ctx, callback)
			}
		}

		duration := time.Since(startTime)
		log.Infof(ctx, "[GetProcess] Processing complete: action=%d, duration=%v", resp.Action, duration)

		return resp
	}
}

// marshalCallback 序列化回调消息（结构固定，序列化不会失败）
func marshalCallback(callback *model.RelayRunCallback) []byte {
	data, _ := json.Marshal(callback)
	return data
}

// parseJob 解析并校验触发任务消息
func parseJob(lmstfyJob *client.Job) (*model.RelayJobData, error) {
	var job model.RelayJob
	if err := json.Unmarshal(lmstfyJob.Data, &job); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	data := job.Payload.Data
	if data.ActionType == "" {
		return nil, fmt.Errorf("invalid job structure: action_type is empty")
	}

	// RequestID 为空则生成一个
	if data.RequestID == "" {
		data.RequestID = uuid.New().String()
	}

	return &data, nil
}
