package render

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/dto"
)

func sampleStats() dto.DashboardStatsDTO {
	copper := dto.TargetProgressDTO{ID: 1, Action: "mine", Resource: "copper", TargetAmount: 100, CurrentAmount: 110, Unit: "SCU", Percentage: 100}
	gold := dto.TargetProgressDTO{ID: 2, Action: "mine", Resource: "gold", TargetAmount: 1000, CurrentAmount: 50, Unit: "SCU", Percentage: 5}
	return dto.DashboardStatsDTO{
		TenantID: "G1",
		Overall: dto.OverallStatsDTO{
			TotalTargets:        2,
			UniqueResourceTypes: 2,
			TotalCurrent:        160,
			TotalTarget:         1100,
			OverallPercentage:   14,
			PerAction:           []dto.ActionBreakdownDTO{{Action: "mine", TargetCount: 2, Current: 160, Target: 1100, Percentage: 14}},
			Closest:             &copper,
			Furthest:            &gold,
		},
		TopContributors: []dto.ContributorDTO{
			{UserID: "u2", Username: "bob", TotalAmount: 80},
			{UserID: "u1", Username: "alice", TotalAmount: 30},
		},
	}
}

func TestProgressBar(t *testing.T) {
	cases := []struct {
		pct, width int
		want       string
	}{
		{0, 10, "░░░░░░░░░░"},
		{30, 10, "███░░░░░░░"},
		{100, 10, "██████████"},
		{150, 4, "████"},
		{-5, 4, "░░░░"},
		{25, 10, "███░░░░░░░"}, // 2.5 四舍五入到 3
		{14, 12, "██░░░░░░░░░░"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ProgressBar(c.pct, c.width), "pct=%d width=%d", c.pct, c.width)
	}
}

func TestDashboardFieldOrder(t *testing.T) {
	doc := Dashboard(sampleStats(), Options{
		Title:             "Org Goals",
		TagFilter:         []string{"weekly"},
		SourceAttribution: "G1",
		RenderedAt:        time.Date(2026, 10, 16, 12, 30, 0, 0, time.UTC),
		BarWidth:          10,
	})

	assert.Equal(t, "Org Goals", doc.Title)
	assert.Contains(t, doc.Description, "14%")
	assert.Contains(t, doc.Description, "160 / 1,100 across 2 targets")

	require.Len(t, doc.Fields, 4)
	assert.Equal(t, "Mine", doc.Fields[0].Name)
	assert.Equal(t, "Top Contributors", doc.Fields[1].Name)
	assert.Equal(t, "🥇 bob: 80\n🥈 alice: 30", doc.Fields[1].Value)
	assert.Equal(t, "Closest to Goal", doc.Fields[2].Name)
	assert.Equal(t, "Mine Copper: 110 / 100 SCU (100%)", doc.Fields[2].Value)
	assert.Equal(t, "Furthest from Goal", doc.Fields[3].Name)
	assert.Equal(t, "Shared from G1 | Tags: weekly | Updated 2026-10-16 12:30 UTC", doc.Footer)
}

func TestDashboardDeterministic(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	a := Dashboard(sampleStats(), Options{RenderedAt: at})
	b := Dashboard(sampleStats(), Options{RenderedAt: at})
	assert.Equal(t, a, b)
	assert.Equal(t, DefaultTitle, a.Title)
}

func TestDashboardEmpty(t *testing.T) {
	doc := Dashboard(dto.DashboardStatsDTO{TenantID: "G9"}, Options{})
	assert.Equal(t, "No targets yet.", doc.Description)
	assert.Empty(t, doc.Fields)
	assert.Empty(t, doc.Footer)
}

func TestTitleCaseMultibyte(t *testing.T) {
	cases := map[string]string{
		"copper_ore": "Copper Ore",
		"éther":      "Éther",
		"добыча":     "Добыча",
		"铜矿-精炼":      "铜矿 精炼",
		"":           "",
	}
	for in, want := range cases {
		got := titleCase(in)
		assert.Equal(t, want, got, "in=%q", in)
		assert.True(t, utf8.ValidString(got), "in=%q", in)
	}

	stats := sampleStats()
	stats.Overall.PerAction[0].Action = "добыча"
	doc := Dashboard(stats, Options{})
	require.NotEmpty(t, doc.Fields)
	assert.Equal(t, "Добыча", doc.Fields[0].Name)
	assert.True(t, utf8.ValidString(doc.Fields[0].Name))
}

func TestLeaderboardAndDailyReport(t *testing.T) {
	lb := Leaderboard(sampleStats().TopContributors, "mine")
	assert.Equal(t, "Leaderboard: Mine", lb.Title)
	assert.Contains(t, lb.Description, "bob: 80")

	empty := Leaderboard(nil, "")
	assert.Equal(t, "No contributions yet.", empty.Description)

	report := DailyReport("2026-10-16", []dto.DayTotalDTO{
		{Action: "mine", Resource: "copper_ore", Unit: "SCU", Amount: 1200, Contributors: 2},
	}, sampleStats().Overall, 10)
	assert.Equal(t, "Daily Report 2026-10-16", report.Title)
	require.Len(t, report.Fields, 2)
	assert.Equal(t, "Mine · Copper Ore", report.Fields[0].Name)
	assert.Equal(t, "+1,200 SCU (2 contributors)", report.Fields[0].Value)
	assert.Equal(t, "Overall", report.Fields[1].Name)
}
