package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
)

func TestCatalogActionTypeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := NewCatalogService(env.actionTypes, env.resources, env.notifier, nil)
	ctx := context.Background()

	at, err := svc.CreateActionType(ctx, ActionTypeInput{Name: " Mine ", Unit: "SCU"})
	require.NoError(t, err)
	assert.Equal(t, "mine", at.Name)
	assert.Equal(t, "mine", at.DisplayName)

	_, err = svc.CreateActionType(ctx, ActionTypeInput{Name: "mine", Unit: "SCU"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.CreateActionType(ctx, ActionTypeInput{Name: "mine it", Unit: "SCU"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = svc.CreateActionType(ctx, ActionTypeInput{Name: "haul"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	updated, err := svc.UpdateActionType(ctx, ActionTypeInput{Name: "mine", DisplayName: "Mining", Unit: "cSCU", Emoji: "⛏️"})
	require.NoError(t, err)
	assert.Equal(t, "cSCU", updated.Unit)
	_, err = svc.UpdateActionType(ctx, ActionTypeInput{Name: "salvage", Unit: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	res, err := svc.CreateResource(ctx, ResourceInput{TenantID: "G1", Action: "mine", Name: "Quantanium Ore"})
	require.NoError(t, err)
	assert.Equal(t, "quantanium-ore", res.Value)
	_, err = svc.CreateResource(ctx, ResourceInput{TenantID: "G1", Action: "salvage", Name: "RMC"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := svc.ListResources(ctx, "G1", "mine")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	other, err := svc.ListResources(ctx, "G2", "")
	require.NoError(t, err)
	assert.Empty(t, other)

	// 被资源引用时禁止删除
	assert.ErrorIs(t, svc.DeleteActionType(ctx, "mine"), apperr.ErrDependencyInUse)
	require.NoError(t, svc.DeleteResource(ctx, "G1", res.ID))

	// 被目标引用时禁止删除
	_, err = env.ledger.CreateOrUpdateTarget(ctx, TargetRequest{TenantID: "G1", Action: "mine", Resource: "copper", Amount: 10})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteActionType(ctx, "mine"), apperr.ErrDependencyInUse)

	target, err := env.ledger.FindTarget(ctx, "G1", "mine", "copper")
	require.NoError(t, err)
	require.NoError(t, env.ledger.DeleteTarget(ctx, target.ID))
	require.NoError(t, svc.DeleteActionType(ctx, "mine"))

	types, err := svc.ListActionTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)
	assert.ErrorIs(t, svc.DeleteActionType(ctx, "mine"), apperr.ErrNotFound)
}
