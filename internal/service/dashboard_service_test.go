package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
)

func newDashboardEnv(t *testing.T) (*testEnv, *fakeSurface, *DashboardService) {
	t.Helper()
	env := newTestEnv(t)
	surface := newFakeSurface()
	svc := NewDashboardService(env.dashboards, env.agg, surface, env.notifier, nil, DashboardOptions{Title: "Goals", BarWidth: 10})
	svc.now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }
	return env, surface, svc
}

func seedCopper(t *testing.T, env *testEnv, tenant string, amount int64) {
	t.Helper()
	ctx := context.Background()
	_, err := env.ledger.CreateOrUpdateTarget(ctx, TargetRequest{TenantID: tenant, Action: "mine", Resource: "copper", Amount: 100})
	require.NoError(t, err)
	if amount > 0 {
		_, err = env.ledger.AddContribution(ctx, AddContributionRequest{TenantID: tenant, Action: "mine", Resource: "copper", Amount: amount, UserID: "u1", Username: "alice"})
		require.NoError(t, err)
	}
}

func TestSyncAllPrunesGoneSurfaces(t *testing.T) {
	env, surface, svc := newDashboardEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 30)

	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		_, err := svc.Register(ctx, id, "c1", "G1", "")
		require.NoError(t, err)
	}
	surface.gone["m3"] = true

	report, err := svc.SyncAll(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, 1, report.Pruned)
	assert.Equal(t, 0, report.Skipped)
	assert.NotEmpty(t, report.SyncID)

	left, err := svc.ListAll(ctx, "G1")
	require.NoError(t, err)
	assert.Len(t, left, 3)

	report, err = svc.SyncAll(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, 0, report.Pruned)
	assert.Equal(t, 2, surface.pushCount("m1"))
	assert.Equal(t, 0, surface.pushCount("m3"))
}

func TestSyncAllIsolatesPushFailures(t *testing.T) {
	env, surface, svc := newDashboardEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 30)

	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := svc.Register(ctx, id, "c1", "G1", "")
		require.NoError(t, err)
	}
	surface.failing["m1"] = true

	report, err := svc.SyncAll(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Skipped)

	// 推送失败不是“展示面不存在”，登记保留
	all, _ := svc.ListAll(ctx, "")
	assert.Len(t, all, 3)
	assert.Equal(t, 1, surface.pushCount("m3"))
	assert.Equal(t, report, svc.LastSync())
}

func TestSyncAllRefreshesSharedDashboard(t *testing.T) {
	env, surface, svc := newDashboardEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 30)
	seedCopper(t, env, "G2", 90)

	_, err := svc.Register(ctx, "local-g2", "c2", "G2", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "shared", "c2", "G2", "G1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "self", "c3", "G1", "G1")
	require.NoError(t, err)

	report, err := svc.SyncAll(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 0, surface.pushCount("local-g2"))

	shared := surface.last("shared")
	assert.Contains(t, shared.Description, "30%")
	assert.Contains(t, shared.Footer, "Shared from G1")

	self := surface.last("self")
	assert.NotContains(t, self.Footer, "Shared from", "来源等于归属时是本地看板")
}

func TestSyncAllIdempotent(t *testing.T) {
	env, surface, svc := newDashboardEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 55)
	_, err := svc.Register(ctx, "m1", "c1", "G1", "")
	require.NoError(t, err)

	_, err = svc.SyncAll(ctx, "G1")
	require.NoError(t, err)
	first := surface.last("m1")
	_, err = svc.SyncAll(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, first, surface.last("m1"))
	assert.Equal(t, []string{"G1", "G1"}, env.notifier.tenants(eventbus.TypeSyncCompleted))
}

func TestSyncAllWithoutSurfaceFails(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDashboardService(env.dashboards, env.agg, nil, nil, nil, DashboardOptions{})
	_, err := svc.SyncAll(context.Background(), "G1")
	assert.ErrorIs(t, err, apperr.ErrTransient)
}

func TestRefreshOne(t *testing.T) {
	env, surface, svc := newDashboardEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 30)
	_, err := svc.Register(ctx, "m1", "c1", "G1", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "m2", "c1", "G1", "")
	require.NoError(t, err)

	require.NoError(t, svc.RefreshOne(ctx, "m1"))
	assert.Equal(t, 1, surface.pushCount("m1"))

	err = svc.RefreshOne(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	surface.failing["m1"] = true
	err = svc.RefreshOne(ctx, "m1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSurfaceGone))

	surface.gone["m2"] = true
	err = svc.RefreshOne(ctx, "m2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, err, ErrSurfaceGone)
	_, err = env.dashboards.GetBySurface(ctx, "m2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateDashboardPostsAndRegisters(t *testing.T) {
	env, surface, svc := newDashboardEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 30)

	d, err := svc.CreateDashboard(ctx, CreateDashboardRequest{
		OwnerTenantID:  "G2",
		ChannelID:      "c9",
		SourceTenantID: "G1",
		Tags:           []string{"Weekly"},
		Title:          "Alliance",
		CreatedBy:      "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", d.DisplaySurfaceID)
	assert.Equal(t, []string{"c9"}, surface.posted)
	assert.True(t, d.Scope().Shared())

	stored, err := env.dashboards.GetBySurface(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "Alliance", stored.Title)
	assert.Equal(t, []string{"weekly"}, []string(stored.Tags))

	doc := surface.last("msg-1")
	assert.Equal(t, "Alliance", doc.Title)
	assert.Equal(t, "No targets yet.", doc.Description, "copper 没有 weekly 标签")

	_, err = svc.CreateDashboard(ctx, CreateDashboardRequest{OwnerTenantID: "G1", ChannelID: ""})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = svc.CreateDashboard(ctx, CreateDashboardRequest{OwnerTenantID: "G1", ChannelID: "c1", Tags: []string{"a,b"}})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRemoveByChannel(t *testing.T) {
	_, _, svc := newDashboardEnv(t)
	ctx := context.Background()
	_, _ = svc.Register(ctx, "m1", "c1", "G1", "")
	_, _ = svc.Register(ctx, "m2", "c1", "G1", "")
	_, _ = svc.Register(ctx, "m3", "c2", "G1", "")

	n, err := svc.RemoveByChannel(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, svc.Remove(ctx, "m3"))
	require.NoError(t, svc.Remove(ctx, "m3"))

	_, err = svc.Register(ctx, "", "c1", "G1", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
