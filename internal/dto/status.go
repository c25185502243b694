package dto

type StatusDTO struct {
	App       AppStatusDTO       `json:"app"`
	Storage   StorageStatusDTO   `json:"storage"`
	Discord   DiscordStatusDTO   `json:"discord"`
	Dashboard DashboardStatusDTO `json:"dashboard"`
}

type AppStatusDTO struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	SafeMode   bool   `json:"safe_mode"`
	ConfigPath string `json:"config_path,omitempty"`
}

type StorageStatusDTO struct {
	Driver         string `json:"driver"`
	SchemaVersion  int    `json:"schema_version"`
	SafeModeReason string `json:"safe_mode_reason,omitempty"`
}

type DiscordStatusDTO struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

type DashboardStatusDTO struct {
	Registered int            `json:"registered"`
	LastSync   *SyncReportDTO `json:"last_sync,omitempty"`
}
