package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/service"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: sqlite
  db_path: ":memory:"
http:
  enabled: false
reconcile:
  interval_min: 1
  auto_fix: true
`), 0o600))
	return path
}

func TestNewCoreWiresServices(t *testing.T) {
	core, err := NewCore(writeTestConfig(t))
	require.NoError(t, err)
	defer core.Close()

	require.NoError(t, core.RequireWritable())
	ctx := context.Background()

	_, err = core.Services.Ledger.CreateOrUpdateTarget(ctx, service.TargetRequest{TenantID: "G1", Action: "mine", Resource: "copper", Amount: 100})
	require.NoError(t, err)
	res, err := core.Services.Ledger.AddContribution(ctx, service.AddContributionRequest{TenantID: "G1", Action: "mine", Resource: "copper", Amount: 30, UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.NewCurrentAmount)

	st := core.Status(ctx, dto.DiscordStatusDTO{})
	assert.Equal(t, "sqlite", st.Storage.Driver)
	assert.False(t, st.App.SafeMode)
	assert.Zero(t, st.Dashboard.Registered)
}

func TestBotRuntimeRunsWithoutDiscord(t *testing.T) {
	rt, err := NewBotRuntime(writeTestConfig(t))
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Bot)
	assert.Nil(t, rt.HTTP)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	// 变更事件会被同步协程消费；未连接展示面时同步失败但协程继续运行
	_, err = rt.Services.Ledger.CreateOrUpdateTarget(context.Background(), service.TargetRequest{TenantID: "G1", Action: "mine", Resource: "copper", Amount: 100})
	require.NoError(t, err)

	st := rt.Status(context.Background())
	assert.False(t, st.Discord.Enabled)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestRunPeriodicRunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		runPeriodic(ctx, 10*time.Millisecond, func() { calls.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
