package dto

// 注意：本包承载对外契约（Discord/HTTP/CLI 共用），不要放 GORM/持久化细节。
// 百分比均已由 service 层取整，渲染层不再做取整决策。

// TargetProgressDTO 单个目标及其当前进度
type TargetProgressDTO struct {
	ID            int64    `json:"id"`
	TenantID      string   `json:"tenant_id"`
	Action        string   `json:"action"`
	Resource      string   `json:"resource"`
	TargetAmount  int64    `json:"target_amount"`
	CurrentAmount int64    `json:"current_amount"`
	Unit          string   `json:"unit"`
	Tags          []string `json:"tags"`
	Percentage    int      `json:"percentage"`
}

// ActionBreakdownDTO 按 action 汇总的进度
type ActionBreakdownDTO struct {
	Action      string `json:"action"`
	TargetCount int    `json:"target_count"`
	Current     int64  `json:"current"`
	Target      int64  `json:"target"`
	Percentage  int    `json:"percentage"`
}

// OverallStatsDTO guild 的总体进度统计；没有目标时 Closest/Furthest 为空
type OverallStatsDTO struct {
	TotalTargets        int                  `json:"total_targets"`
	UniqueResourceTypes int                  `json:"unique_resource_types"`
	TotalCurrent        int64                `json:"total_current"`
	TotalTarget         int64                `json:"total_target"`
	OverallPercentage   int                  `json:"overall_percentage"`
	PerAction           []ActionBreakdownDTO `json:"per_action"`
	Closest             *TargetProgressDTO   `json:"closest,omitempty"`
	Furthest            *TargetProgressDTO   `json:"furthest,omitempty"`
}

// ContributorDTO 贡献排行的一行
type ContributorDTO struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	TotalAmount int64  `json:"total_amount"`
}

// ContributionEntryDTO 贡献流水的一条
type ContributionEntryDTO struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Amount    int64  `json:"amount"`
	Location  string `json:"location,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// DashboardStatsDTO 渲染一个看板所需的全部数据
type DashboardStatsDTO struct {
	TenantID        string           `json:"tenant_id"`
	Tags            []string         `json:"tags,omitempty"`
	Overall         OverallStatsDTO  `json:"overall"`
	TopContributors []ContributorDTO `json:"top_contributors"`
}

// ContributionResultDTO 记录贡献后的结果
type ContributionResultDTO struct {
	TargetID         int64  `json:"target_id"`
	NewCurrentAmount int64  `json:"new_current_amount"`
	TargetAmount     int64  `json:"target_amount"`
	Unit             string `json:"unit"`
	Percentage       int    `json:"percentage"`
}

// DriftDTO 进度缓存与账本的差异
type DriftDTO struct {
	TargetID     int64  `json:"target_id"`
	TenantID     string `json:"tenant_id"`
	Action       string `json:"action"`
	Resource     string `json:"resource"`
	CachedAmount int64  `json:"cached_amount"`
	LedgerAmount int64  `json:"ledger_amount"`
	Fixed        bool   `json:"fixed"`
}

// SyncReportDTO 一次批量同步的结果
type SyncReportDTO struct {
	SyncID    string `json:"sync_id"`
	TenantID  string `json:"tenant_id,omitempty"`
	Updated   int    `json:"updated"`
	Pruned    int    `json:"pruned"`
	Skipped   int    `json:"skipped"`
	StartedAt int64  `json:"started_at"`
	Duration  int64  `json:"duration_ms"`
}

// DayTotalDTO 某日单个目标的贡献合计（日报用）
type DayTotalDTO struct {
	TargetID     int64  `json:"target_id"`
	Action       string `json:"action"`
	Resource     string `json:"resource"`
	Unit         string `json:"unit"`
	Amount       int64  `json:"amount"`
	Contributors int64  `json:"contributors"`
}
