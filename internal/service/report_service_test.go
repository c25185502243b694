package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"go.uber.org/goleak"
)

func newReportEnv(t *testing.T) (*testEnv, *fakeSurface, *ReportService) {
	t.Helper()
	env := newTestEnv(t)
	surface := newFakeSurface()
	svc := NewReportService(env.settings, env.contributions, env.agg, surface, nil, time.UTC, 10)
	return env, surface, svc
}

func TestReportTickPostsOncePerDay(t *testing.T) {
	env, surface, svc := newReportEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 30)

	require.NoError(t, svc.Configure(ctx, "G1", schema.AutoReportSetting{Enabled: true, ChannelID: "reports", Time: "20:00"}))
	require.NoError(t, svc.Configure(ctx, "G2", schema.AutoReportSetting{Enabled: false}))

	day := time.Now().UTC().Truncate(24 * time.Hour)

	n, err := svc.Tick(ctx, day.Add(19*time.Hour+59*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "未到发布时间")

	n, err = svc.Tick(ctx, day.Add(20*time.Hour+5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, []string{"reports"}, surface.posted)

	doc := surface.last("msg-1")
	assert.Equal(t, "Daily Report "+day.Format("2006-01-02"), doc.Title)
	require.NotEmpty(t, doc.Fields)
	assert.Equal(t, "+30 units (1 contributors)", doc.Fields[0].Value)

	n, err = svc.Tick(ctx, day.Add(22*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "同一天只发布一次")

	setting, err := svc.Get(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, day.Format("2006-01-02"), setting.LastReportDate)

	// 重新配置不会清掉已发布日期
	require.NoError(t, svc.Configure(ctx, "G1", schema.AutoReportSetting{Enabled: true, ChannelID: "reports", Time: "21:00"}))
	setting, _ = svc.Get(ctx, "G1")
	assert.Equal(t, day.Format("2006-01-02"), setting.LastReportDate)
}

func TestReportConfigureValidates(t *testing.T) {
	_, _, svc := newReportEnv(t)
	ctx := context.Background()

	err := svc.Configure(ctx, "G1", schema.AutoReportSetting{Enabled: true, ChannelID: "", Time: "20:00"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	err = svc.Configure(ctx, "G1", schema.AutoReportSetting{Enabled: true, ChannelID: "c", Time: "25:99"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	got, err := svc.Get(ctx, "G404")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestReportRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	_, _, svc := newReportEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, 10*time.Millisecond) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
