package repository

import (
	"context"
	"testing"

	"github.com/yuqie6/ResourceTally/internal/schema"
	"github.com/yuqie6/ResourceTally/internal/testutil"
)

func TestSettingRepositoryUpsert(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSettingRepository(db)
	ctx := context.Background()

	raw, _ := schema.AutoReportSetting{Enabled: true, ChannelID: "c1", Time: "20:00"}.JSON()
	if err := repo.Upsert(ctx, &schema.Setting{TenantID: "G1", SettingKey: schema.SettingKeyAutoReport, SettingValue: raw}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	raw, _ = schema.AutoReportSetting{Enabled: true, ChannelID: "c2", Time: "21:00"}.JSON()
	if err := repo.Upsert(ctx, &schema.Setting{TenantID: "G1", SettingKey: schema.SettingKeyAutoReport, SettingValue: raw}); err != nil {
		t.Fatalf("second Upsert error: %v", err)
	}

	got, err := repo.Get(ctx, "G1", schema.SettingKeyAutoReport)
	if err != nil || got == nil {
		t.Fatalf("got=%v err=%v", got, err)
	}
	parsed, err := schema.ParseAutoReportSetting(got.SettingValue)
	if err != nil || parsed.ChannelID != "c2" {
		t.Fatalf("parsed=%+v err=%v", parsed, err)
	}

	all, _ := repo.ListByKey(ctx, schema.SettingKeyAutoReport)
	if len(all) != 1 {
		t.Fatalf("settings=%d, want 1", len(all))
	}
	none, err := repo.Get(ctx, "G2", schema.SettingKeyAutoReport)
	if err != nil || none != nil {
		t.Fatalf("none=%v err=%v", none, err)
	}
}
