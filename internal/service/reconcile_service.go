package service

import (
	"context"
	"log/slog"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
)

// ReconcileService 对账：检查进度缓存是否等于贡献合计，可选地按账本修复
type ReconcileService struct {
	progress ProgressRepository
	notifier Notifier
	metrics  *observability.Metrics
}

// NewReconcileService 创建对账服务
func NewReconcileService(progress ProgressRepository, notifier Notifier, metrics *observability.Metrics) *ReconcileService {
	return &ReconcileService{progress: progress, notifier: notifier, metrics: metrics}
}

// Check 返回漂移的目标；fix 为真时逐个以账本合计重写缓存（每个目标一个事务）。
// tenantID 为空时检查全部 guild。
func (s *ReconcileService) Check(ctx context.Context, tenantID string, fix bool) ([]dto.DriftDTO, error) {
	drift, err := s.progress.FindDrift(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.metrics.SetDrift(len(drift))

	out := make([]dto.DriftDTO, 0, len(drift))
	touched := make(map[string]struct{})
	for _, d := range drift {
		item := dto.DriftDTO{
			TargetID:     d.TargetID,
			TenantID:     d.TenantID,
			Action:       d.Action,
			Resource:     d.Resource,
			CachedAmount: d.CachedAmount,
			LedgerAmount: d.LedgerAmount,
		}
		slog.Warn("进度缓存与账本不一致",
			"tenant", d.TenantID, "target_id", d.TargetID, "cached", d.CachedAmount, "ledger", d.LedgerAmount)

		if fix {
			if _, err := s.progress.Rebuild(ctx, d.TargetID); err != nil {
				slog.Error("修复进度缓存失败", "target_id", d.TargetID, "error", err)
			} else {
				item.Fixed = true
				touched[d.TenantID] = struct{}{}
			}
		}
		out = append(out, item)
	}

	if fix && len(touched) > 0 {
		s.metrics.SetDrift(len(drift) - countFixed(out))
		if s.notifier != nil {
			for tenant := range touched {
				s.notifier.Publish(eventbus.TenantChanged(tenant, "reconcile"))
			}
		}
	}
	return out, nil
}

func countFixed(items []dto.DriftDTO) int {
	n := 0
	for _, it := range items {
		if it.Fixed {
			n++
		}
	}
	return n
}
