package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

func TestReconcileDetectsAndFixesDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCopper(t, env, "G1", 40)
	seedCopper(t, env, "G2", 10)

	target, err := env.ledger.FindTarget(ctx, "G1", "mine", "copper")
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&schema.Progress{}).Where("target_id = ?", target.ID).Update("current_amount", 999).Error)

	metrics := observability.NewMetrics(nil)
	svc := NewReconcileService(env.progress, env.notifier, metrics)

	drift, err := svc.Check(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.EqualValues(t, 999, drift[0].CachedAmount)
	assert.EqualValues(t, 40, drift[0].LedgerAmount)
	assert.False(t, drift[0].Fixed)

	before := len(env.notifier.tenants(eventbus.TypeTenantChanged))
	drift, err = svc.Check(ctx, "G1", true)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.True(t, drift[0].Fixed)
	changed := env.notifier.tenants(eventbus.TypeTenantChanged)
	require.Len(t, changed, before+1)
	assert.Equal(t, "G1", changed[before])

	drift, err = svc.Check(ctx, "", false)
	require.NoError(t, err)
	assert.Empty(t, drift)
}
