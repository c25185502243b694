package main

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/dto"
)

func TestRenderDocument(t *testing.T) {
	doc := dto.DisplayDocument{
		Title:       "Resource Progress",
		Description: "Overall 1,500 / 3,000",
		Fields: []dto.Field{
			{Name: "Mining", Value: "copper ██████░░░░░░ 50%"},
			{Name: "Top Contributors", Value: "1. alice 1,500"},
		},
		Footer: "Filtered by: ore",
	}

	out := renderDocument(doc, previewWidth)
	for _, want := range []string{"Resource Progress", "Overall 1,500 / 3,000", "Mining", "copper", "Top Contributors", "Filtered by: ore"} {
		assert.Contains(t, out, want)
	}
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), previewWidth)
	}
}

func TestRenderDocumentEmpty(t *testing.T) {
	out := renderDocument(dto.DisplayDocument{}, 10)
	assert.NotEmpty(t, out)
}

func TestRenderTableAlignsWideRunes(t *testing.T) {
	out := renderTable([]string{"ID", "名称"}, [][]string{
		{"1", "铜"},
		{"22", "x"},
		{"3"},
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "1   铜", lines[1])
	assert.Equal(t, "22  x", lines[2])
	assert.Equal(t, "3   ", lines[3])
}
