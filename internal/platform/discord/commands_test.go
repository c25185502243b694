package discord

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/repository"
	"github.com/yuqie6/ResourceTally/internal/service"
	"github.com/yuqie6/ResourceTally/internal/testutil"
)

func newTestRouter(t *testing.T) (*commandRouter, *fakeMessageAPI, *[]string) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	targets := repository.NewTargetRepository(db)
	contributions := repository.NewContributionRepository(db)
	agg := service.NewAggregator(targets, contributions)
	api := &fakeMessageAPI{}

	svc := Services{
		Ledger:     service.NewLedgerService(targets, contributions, repository.NewActionTypeRepository(db), nil, nil),
		Aggregator: agg,
		Dashboards: service.NewDashboardService(repository.NewDashboardRepository(db), agg, NewSurface(api), nil, nil, service.DashboardOptions{}),
		Reports:    service.NewReportService(repository.NewSettingRepository(db), contributions, agg, NewSurface(api), nil, time.UTC, 10),
	}
	var synced []string
	return newCommandRouter(svc, func(tenantID string) { synced = append(synced, tenantID) }), api, &synced
}

func adminReq(sub string, opts map[string]any) commandRequest {
	return commandRequest{GuildID: "G1", ChannelID: "C1", UserID: "u-admin", Username: "admin", Admin: true, Sub: sub, Options: opts}
}

func TestContributeFlow(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	reply := r.dispatch(ctx, cmdTarget, adminReq("set", map[string]any{
		"action": "Mine", "resource": "copper", "amount": int64(100), "unit": "SCU",
	}))
	assert.Contains(t, reply.Content, "Target #")

	reply = r.dispatch(ctx, cmdContribute, commandRequest{
		GuildID: "G1", UserID: "u1", Username: "alice",
		Options: map[string]any{"action": "mine", "resource": "copper", "amount": int64(1500), "location": "Hurston"},
	})
	assert.False(t, reply.Ephemeral)
	assert.Equal(t, "Recorded +1,500 SCU for mine / copper. Progress: 1,500 / 100 (100%)", reply.Content)

	reply = r.dispatch(ctx, cmdLeaderboard, commandRequest{GuildID: "G1", Options: map[string]any{}})
	require.NotNil(t, reply.Document)
	assert.Contains(t, reply.Document.Description, "alice")
}

func TestDispatchTranslatesErrors(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	reply := r.dispatch(ctx, cmdContribute, commandRequest{
		GuildID: "G1", UserID: "u1",
		Options: map[string]any{"action": "mine", "resource": "gold", "amount": int64(5)},
	})
	assert.True(t, reply.Ephemeral)
	assert.Equal(t, "That item could not be found.", reply.Content)

	reply = r.dispatch(ctx, cmdContribute, commandRequest{
		GuildID: "G1", UserID: "u1",
		Options: map[string]any{"action": "mine", "resource": "gold", "amount": int64(0)},
	})
	assert.Equal(t, "Some of the values you entered are not valid.", reply.Content)

	reply = r.dispatch(ctx, cmdTarget, commandRequest{GuildID: "G1", Sub: "set", Options: map[string]any{}})
	assert.Contains(t, reply.Content, "Manage Server")

	reply = r.dispatch(ctx, cmdProgress, commandRequest{Options: map[string]any{}})
	assert.Contains(t, reply.Content, "server")

	reply = r.dispatch(ctx, "nope", adminReq("", nil))
	assert.Equal(t, "Unknown command.", reply.Content)
}

func TestTargetResetAndRemove(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()
	key := map[string]any{"action": "mine", "resource": "copper"}

	r.dispatch(ctx, cmdTarget, adminReq("set", map[string]any{"action": "mine", "resource": "copper", "amount": int64(100)}))
	r.dispatch(ctx, cmdContribute, commandRequest{GuildID: "G1", UserID: "u1", Options: map[string]any{"action": "mine", "resource": "copper", "amount": int64(30)}})

	reply := r.dispatch(ctx, cmdTarget, adminReq("reset", key))
	assert.Equal(t, "Progress for mine / copper reset.", reply.Content)

	reply = r.dispatch(ctx, cmdTarget, adminReq("remove", key))
	assert.Equal(t, "Target mine / copper removed.", reply.Content)

	reply = r.dispatch(ctx, cmdTarget, adminReq("remove", key))
	assert.Equal(t, "That item could not be found.", reply.Content)
}

func TestDashboardCommands(t *testing.T) {
	r, api, synced := newTestRouter(t)
	ctx := context.Background()

	reply := r.dispatch(ctx, cmdDashboard, adminReq("create", map[string]any{"tags": "ore", "title": "Ore Run"}))
	assert.Equal(t, "Dashboard created in <#C1>.", reply.Content)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "Ore Run", api.sent[0].Embeds[0].Title)

	reply = r.dispatch(ctx, cmdDashboard, adminReq("create", map[string]any{"source": "G9", "channel": "C2"}))
	assert.Contains(t, reply.Content, "server G9")

	reply = r.dispatch(ctx, cmdDashboard, adminReq("create", map[string]any{"tags": "bad tag"}))
	assert.Equal(t, "Some of the values you entered are not valid.", reply.Content)

	r.dispatch(ctx, cmdDashboard, adminReq("sync", nil))
	assert.Equal(t, []string{"G1"}, *synced)
}

func TestReportSetKeepsPreviousValues(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	reply := r.dispatch(ctx, cmdReport, adminReq("set", map[string]any{"channel": "C9", "time": "21:30"}))
	assert.Equal(t, "Daily report will be posted in <#C9> at 21:30.", reply.Content)

	reply = r.dispatch(ctx, cmdReport, adminReq("set", map[string]any{"time": "08:00"}))
	assert.Equal(t, "Daily report will be posted in <#C9> at 08:00.", reply.Content)

	reply = r.dispatch(ctx, cmdReport, adminReq("set", map[string]any{"time": "25:99"}))
	assert.Equal(t, "Some of the values you entered are not valid.", reply.Content)

	reply = r.dispatch(ctx, cmdReport, adminReq("set", map[string]any{"enabled": false}))
	assert.Equal(t, "Daily report disabled.", reply.Content)
}

func TestCommandDefinitionsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commandDefinitions() {
		assert.False(t, seen[c.Name], c.Name)
		seen[c.Name] = true
		assert.NotEmpty(t, c.Description)
	}
	assert.Len(t, seen, 6)
}
