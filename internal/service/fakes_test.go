package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/repository"
	"github.com/yuqie6/ResourceTally/internal/testutil"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (n *recordingNotifier) Publish(evt eventbus.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) tenants(typ string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		if e.Type == typ {
			out = append(out, e.TenantID())
		}
	}
	return out
}

// fakeSurface 内存展示面：gone 中的消息视为已删除，failing 中的消息推送失败
type fakeSurface struct {
	mu      sync.Mutex
	gone    map[string]bool
	failing map[string]bool
	pushes  map[string][]dto.DisplayDocument
	posted  []string
	nextID  int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		gone:    map[string]bool{},
		failing: map[string]bool{},
		pushes:  map[string][]dto.DisplayDocument{},
	}
}

func (f *fakeSurface) Resolve(ctx context.Context, channelID, surfaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[surfaceID] {
		return fmt.Errorf("unknown message %s: %w", surfaceID, ErrSurfaceGone)
	}
	return nil
}

func (f *fakeSurface) Push(ctx context.Context, channelID, surfaceID string, doc dto.DisplayDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[surfaceID] {
		return fmt.Errorf("rate limited")
	}
	f.pushes[surfaceID] = append(f.pushes[surfaceID], doc)
	return nil
}

func (f *fakeSurface) Post(ctx context.Context, channelID string, doc dto.DisplayDocument) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.posted = append(f.posted, channelID)
	f.pushes[id] = append(f.pushes[id], doc)
	return id, nil
}

func (f *fakeSurface) pushCount(surfaceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes[surfaceID])
}

func (f *fakeSurface) last(surfaceID string) dto.DisplayDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := f.pushes[surfaceID]
	return docs[len(docs)-1]
}

// testEnv 基于内存 SQLite 的真实仓储组合
type testEnv struct {
	db            *gorm.DB
	targets       *repository.TargetRepository
	contributions *repository.ContributionRepository
	actionTypes   *repository.ActionTypeRepository
	resources     *repository.ResourceRepository
	dashboards    *repository.DashboardRepository
	settings      *repository.SettingRepository
	progress      *repository.ProgressRepository
	notifier      *recordingNotifier
	agg           *Aggregator
	ledger        *LedgerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenTestDB(t)
	env := &testEnv{
		db:            db,
		targets:       repository.NewTargetRepository(db),
		contributions: repository.NewContributionRepository(db),
		actionTypes:   repository.NewActionTypeRepository(db),
		resources:     repository.NewResourceRepository(db),
		dashboards:    repository.NewDashboardRepository(db),
		settings:      repository.NewSettingRepository(db),
		progress:      repository.NewProgressRepository(db),
		notifier:      &recordingNotifier{},
	}
	env.agg = NewAggregator(env.targets, env.contributions)
	env.ledger = NewLedgerService(env.targets, env.contributions, env.actionTypes, env.notifier, nil)
	return env
}
