package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/service"
)

// RefreshButtonID 看板消息上刷新按钮的 custom_id
const RefreshButtonID = "dashboard_refresh"

// messageAPI Surface 依赖的 discordgo.Session 子集
type messageAPI interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Surface 以频道消息作为看板展示面
type Surface struct {
	api messageAPI
}

// NewSurface 创建展示面适配器
func NewSurface(api messageAPI) *Surface {
	return &Surface{api: api}
}

// NewRESTSurface 只走 REST 的展示面，不建立网关连接（CLI 同步用）
func NewRESTSurface(token string) (*Surface, error) {
	if token == "" {
		return nil, errors.New("discord token 为空")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("创建 discord 会话失败: %w", err)
	}
	return NewSurface(session), nil
}

// Resolve 确认消息仍然存在
func (s *Surface) Resolve(ctx context.Context, channelID, surfaceID string) error {
	_, err := s.api.ChannelMessage(channelID, surfaceID, discordgo.WithContext(ctx))
	return classify("读取消息", err)
}

// Push 用文档覆盖消息内容
func (s *Surface) Push(ctx context.Context, channelID, surfaceID string, doc dto.DisplayDocument) error {
	edit := discordgo.NewMessageEdit(channelID, surfaceID).SetEmbed(ToEmbed(doc))
	_, err := s.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return classify("编辑消息", err)
}

// Post 发布带刷新按钮的新消息
func (s *Surface) Post(ctx context.Context, channelID string, doc dto.DisplayDocument) (string, error) {
	msg, err := s.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{ToEmbed(doc)},
		Components: refreshComponents(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify("发送消息", err)
	}
	return msg.ID, nil
}

func refreshComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Refresh",
					Style:    discordgo.SecondaryButton,
					CustomID: RefreshButtonID,
					Emoji:    &discordgo.ComponentEmoji{Name: "🔄"},
				},
			},
		},
	}
}

// classify 只把频道/消息已删除归为 ErrSurfaceGone；无权访问可能是临时的，
// 归为 ErrTransient，本次跳过，登记保留
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isGone(err) {
		return fmt.Errorf("%s: %w: %w", op, service.ErrSurfaceGone, err)
	}
	if isForbidden(err) {
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isGone(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return true
		case discordgo.ErrCodeMissingAccess:
			return false
		}
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func isForbidden(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeMissingAccess {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}
