package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
)

// Syncer 批量同步入口（DashboardService 实现）
type Syncer interface {
	SyncAll(ctx context.Context, tenantID string) (*dto.SyncReportDTO, error)
}

// SyncWorker 订阅 tenant.changed 事件并触发看板同步。
// 事件在 Publish 时直接并入待同步集合，同一 guild 只保留一份，
// 同步进行中到达的变更不会丢失，只会合并。
type SyncWorker struct {
	hub     *eventbus.Hub
	syncer  Syncer
	metrics *observability.Metrics

	mu        sync.Mutex
	pending   map[string]struct{}
	order     []string
	wake      chan struct{}
	synced    atomic.Int64
	coalesced atomic.Int64
}

// NewSyncWorker 创建同步协程
func NewSyncWorker(hub *eventbus.Hub, syncer Syncer, metrics *observability.Metrics) *SyncWorker {
	return &SyncWorker{
		hub:     hub,
		syncer:  syncer,
		metrics: metrics,
		pending: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Run 处理循环，直到 ctx 取消
func (w *SyncWorker) Run(ctx context.Context) error {
	w.hub.Handle(ctx, w.enqueue, eventbus.TypeTenantChanged)
	slog.Info("看板同步协程已启动")

	for {
		tenant, ok := w.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-w.wake:
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		if _, err := w.syncer.SyncAll(ctx, tenant); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("看板同步失败", "tenant", tenant, "error", err)
			continue
		}
		w.synced.Add(1)
	}
}

// Synced 已完成的同步次数
func (w *SyncWorker) Synced() int64 {
	return w.synced.Load()
}

// Coalesced 被合并掉的事件数
func (w *SyncWorker) Coalesced() int64 {
	return w.coalesced.Load()
}

// Pending 排队等待同步的 guild 数
func (w *SyncWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *SyncWorker) next() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return "", false
	}
	tenant := w.order[0]
	w.order = w.order[1:]
	delete(w.pending, tenant)
	return tenant, true
}

// enqueue 在 Publish 调用方协程里执行，只做入队
func (w *SyncWorker) enqueue(evt eventbus.Event) {
	if evt.Type != eventbus.TypeTenantChanged {
		return
	}
	tenant := evt.TenantID()
	if tenant == "" {
		return
	}

	w.mu.Lock()
	_, queued := w.pending[tenant]
	if !queued {
		w.pending[tenant] = struct{}{}
		w.order = append(w.order, tenant)
	}
	w.mu.Unlock()

	if queued {
		w.coalesced.Add(1)
		w.metrics.ObserveCoalesced()
		return
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
