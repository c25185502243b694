package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuqie6/ResourceTally/internal/dto"
)

const previewWidth = 64

// 与 Discord embed 的绿色保持一致
var (
	accent = lipgloss.Color("#2ecc71")
	faint  = lipgloss.Color("245")

	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	fieldStyle  = lipgloss.NewStyle().Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(faint).Italic(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// renderDocument 在终端里近似还原 embed 的版式
func renderDocument(doc dto.DisplayDocument, width int) string {
	inner := width - 4 // 边框 + 内边距
	if inner < 20 {
		inner = 20
	}
	block := lipgloss.NewStyle().Width(inner)

	parts := make([]string, 0, len(doc.Fields)*2+3)
	if doc.Title != "" {
		parts = append(parts, titleStyle.Width(inner).Render(doc.Title))
	}
	if doc.Description != "" {
		parts = append(parts, block.Render(doc.Description))
	}
	for _, f := range doc.Fields {
		parts = append(parts, "", fieldStyle.Width(inner).Render(f.Name), block.Render(f.Value))
	}
	if doc.Footer != "" {
		parts = append(parts, "", footerStyle.Width(inner).Render(doc.Footer))
	}
	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// renderTable 左对齐的简单表格；列宽按显示宽度计算（兼容中文与 emoji）
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) && lipgloss.Width(row[i]) > widths[i] {
				widths[i] = lipgloss.Width(row[i])
			}
		}
	}

	var b strings.Builder
	line := func(cells []string, style *lipgloss.Style) {
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if style != nil {
				cell = style.Render(cell)
			}
			b.WriteString(cell)
			if i < len(headers)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteString("\n")
	}

	line(headers, &headerStyle)
	for _, row := range rows {
		line(row, nil)
	}
	return strings.TrimRight(b.String(), "\n")
}
