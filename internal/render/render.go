// Package render 把统计结果渲染为 dto.DisplayDocument。
// 纯函数：不做 I/O，不读当前时间，相同输入得到相同输出。
package render

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/yuqie6/ResourceTally/internal/dto"
)

const (
	DefaultTitle    = "Resource Progress"
	DefaultBarWidth = 12

	glyphFilled = "█"
	glyphEmpty  = "░"
)

// Options 渲染参数
type Options struct {
	Title             string
	TagFilter         []string
	SourceAttribution string    // 共享看板的数据来源 guild，空表示本地看板
	RenderedAt        time.Time // 零值时页脚不带时间
	BarWidth          int
}

func (o Options) barWidth() int {
	if o.BarWidth <= 0 {
		return DefaultBarWidth
	}
	return o.BarWidth
}

// ProgressBar 固定宽度的双字符进度条，填充格数 = round(pct/100*width)
func ProgressBar(pct int, width int) string {
	if width <= 0 {
		width = DefaultBarWidth
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(math.Round(float64(pct) / 100 * float64(width)))
	return strings.Repeat(glyphFilled, filled) + strings.Repeat(glyphEmpty, width-filled)
}

// Amount 千分位格式的数量
func Amount(n int64) string {
	return humanize.Comma(n)
}

// Dashboard 渲染看板。字段顺序固定：总览、各 action、贡献排行、最近/最远目标、页脚。
func Dashboard(stats dto.DashboardStatsDTO, opts Options) dto.DisplayDocument {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = DefaultTitle
	}
	width := opts.barWidth()
	overall := stats.Overall

	doc := dto.DisplayDocument{Title: title, Fields: []dto.Field{}}

	if overall.TotalTargets == 0 {
		doc.Description = "No targets yet."
	} else {
		doc.Description = fmt.Sprintf("%s %d%%\n%s / %s across %d targets (%d resources)",
			ProgressBar(overall.OverallPercentage, width),
			overall.OverallPercentage,
			Amount(overall.TotalCurrent),
			Amount(overall.TotalTarget),
			overall.TotalTargets,
			overall.UniqueResourceTypes,
		)
	}

	for _, b := range overall.PerAction {
		value := fmt.Sprintf("%s %d%%\n%s / %s",
			ProgressBar(b.Percentage, width), b.Percentage, Amount(b.Current), Amount(b.Target))
		doc.Fields = append(doc.Fields, dto.Field{Name: titleCase(b.Action), Value: value, Inline: true})
	}

	if len(stats.TopContributors) > 0 {
		doc.Fields = append(doc.Fields, dto.Field{
			Name:  "Top Contributors",
			Value: contributorLines(stats.TopContributors),
		})
	}

	if overall.Closest != nil {
		doc.Fields = append(doc.Fields, dto.Field{
			Name:   "Closest to Goal",
			Value:  targetLine(*overall.Closest),
			Inline: true,
		})
	}
	if overall.Furthest != nil {
		doc.Fields = append(doc.Fields, dto.Field{
			Name:   "Furthest from Goal",
			Value:  targetLine(*overall.Furthest),
			Inline: true,
		})
	}

	doc.Footer = footer(opts)
	return doc
}

// Leaderboard 渲染贡献排行
func Leaderboard(rows []dto.ContributorDTO, action string) dto.DisplayDocument {
	title := "Leaderboard"
	if action != "" {
		title = "Leaderboard: " + titleCase(action)
	}
	doc := dto.DisplayDocument{Title: title, Fields: []dto.Field{}}
	if len(rows) == 0 {
		doc.Description = "No contributions yet."
		return doc
	}
	doc.Description = contributorLines(rows)
	return doc
}

// DailyReport 渲染某日的贡献日报
func DailyReport(date string, totals []dto.DayTotalDTO, overall dto.OverallStatsDTO, barWidth int) dto.DisplayDocument {
	doc := dto.DisplayDocument{
		Title:  "Daily Report " + date,
		Fields: []dto.Field{},
	}
	if len(totals) == 0 {
		doc.Description = "No contributions today."
	} else {
		var sum int64
		for _, t := range totals {
			sum += t.Amount
		}
		doc.Description = fmt.Sprintf("%s contributed across %d targets.", Amount(sum), len(totals))
		for _, t := range totals {
			doc.Fields = append(doc.Fields, dto.Field{
				Name:   fmt.Sprintf("%s · %s", titleCase(t.Action), titleCase(t.Resource)),
				Value:  fmt.Sprintf("+%s %s (%d contributors)", Amount(t.Amount), t.Unit, t.Contributors),
				Inline: true,
			})
		}
	}
	if barWidth <= 0 {
		barWidth = DefaultBarWidth
	}
	doc.Fields = append(doc.Fields, dto.Field{
		Name:  "Overall",
		Value: fmt.Sprintf("%s %d%%", ProgressBar(overall.OverallPercentage, barWidth), overall.OverallPercentage),
	})
	return doc
}

func contributorLines(rows []dto.ContributorDTO) string {
	medals := []string{"🥇", "🥈", "🥉"}
	lines := make([]string, 0, len(rows))
	for i, c := range rows {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := c.Username
		if name == "" {
			name = c.UserID
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", rank, name, Amount(c.TotalAmount)))
	}
	return strings.Join(lines, "\n")
}

func targetLine(t dto.TargetProgressDTO) string {
	return fmt.Sprintf("%s %s: %s / %s %s (%d%%)",
		titleCase(t.Action), titleCase(t.Resource),
		Amount(t.CurrentAmount), Amount(t.TargetAmount), t.Unit, t.Percentage)
}

func footer(opts Options) string {
	parts := make([]string, 0, 3)
	if opts.SourceAttribution != "" {
		parts = append(parts, "Shared from "+opts.SourceAttribution)
	}
	if len(opts.TagFilter) > 0 {
		parts = append(parts, "Tags: "+strings.Join(opts.TagFilter, ", "))
	}
	if !opts.RenderedAt.IsZero() {
		parts = append(parts, "Updated "+opts.RenderedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return strings.Join(parts, " | ")
}

// titleCase 把 slug 转为展示名：copper_ore -> Copper Ore
func titleCase(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
