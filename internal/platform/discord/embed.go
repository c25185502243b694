package discord

import (
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/yuqie6/ResourceTally/internal/dto"
)

// Discord embed 长度上限
const (
	maxTitleLen       = 256
	maxDescriptionLen = 4096
	maxFieldNameLen   = 256
	maxFieldValueLen  = 1024
	maxFields         = 25
	maxFooterLen      = 2048
	maxEmbedTotal     = 6000
)

// embedColor 看板侧边色条
const embedColor = 0x2ecc71

// ToEmbed 把展示文档映射为 Discord embed，并按平台上限截断
func ToEmbed(doc dto.DisplayDocument) *discordgo.MessageEmbed {
	budget := maxEmbedTotal

	take := func(s string, limit int) string {
		if limit > budget {
			limit = budget
		}
		out := truncate(s, limit)
		budget -= utf8.RuneCountInString(out)
		return out
	}

	embed := &discordgo.MessageEmbed{
		Title:       take(doc.Title, maxTitleLen),
		Description: take(doc.Description, maxDescriptionLen),
		Color:       embedColor,
	}
	if doc.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: take(doc.Footer, maxFooterLen)}
	}

	for _, f := range doc.Fields {
		if len(embed.Fields) == maxFields || budget <= 0 {
			break
		}
		name := take(f.Name, maxFieldNameLen)
		value := take(f.Value, maxFieldValueLen)
		if name == "" || value == "" {
			// Discord 拒绝空字段
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  value,
			Inline: f.Inline,
		})
	}
	return embed
}

// truncate 按字符截断，超长时以 … 结尾
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
