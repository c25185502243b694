// Package discord 把看板展示面和斜杠命令接到 Discord。
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
)

const interactionTimeout = 10 * time.Second

// Options Bot 连接参数
type Options struct {
	Token string
	AppID string

	// GuildID 非空时只在该 guild 注册命令（开发调试用，生效更快）
	GuildID string
}

// Bot Discord 网关连接
type Bot struct {
	session *discordgo.Session
	opts    Options
	svc     Services
	router  *commandRouter
	surface *Surface

	connected atomic.Bool

	mu  sync.Mutex
	ctx context.Context
	wg  sync.WaitGroup
}

// New 创建 Bot（尚未连接网关）
func New(opts Options, svc Services) (*Bot, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("discord token 未配置")
	}
	session, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("创建 discord 会话失败: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	b := &Bot{
		session: session,
		opts:    opts,
		svc:     svc,
		surface: NewSurface(session),
		ctx:     context.Background(),
	}
	b.router = newCommandRouter(svc, b.syncInBackground)

	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	session.AddHandler(b.onChannelDelete)
	session.AddHandler(b.onMessageDelete)
	return b, nil
}

// Surface 看板展示面
func (b *Bot) Surface() *Surface {
	return b.surface
}

// Connected 网关是否已就绪
func (b *Bot) Connected() bool {
	return b.connected.Load()
}

// Run 连接网关并注册命令，阻塞直到 ctx 取消
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("连接 discord 网关失败: %w", err)
	}
	slog.Info("discord 网关已连接")

	appID := b.opts.AppID
	if appID == "" && b.session.State != nil && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.opts.GuildID, commandDefinitions()); err != nil {
		slog.Error("注册斜杠命令失败", "error", err)
	}

	<-ctx.Done()
	b.connected.Store(false)
	b.wg.Wait()
	if err := b.session.Close(); err != nil {
		slog.Warn("关闭 discord 会话失败", "error", err)
	}
	slog.Info("discord 网关已断开")
	return nil
}

func (b *Bot) baseContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.connected.Store(true)
	slog.Info("discord 就绪", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.baseContext(), interactionTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name, req := toRequest(i)
		reply := b.router.dispatch(ctx, name, req)
		if err := s.InteractionRespond(i.Interaction, toResponse(reply), discordgo.WithContext(ctx)); err != nil {
			slog.Warn("回复命令失败", "command", name, "error", err)
		}
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == RefreshButtonID {
			b.onRefreshClick(ctx, s, i)
		}
	}
}

// onRefreshClick 刷新按钮：先确认交互，再就地刷新；失败以仅自己可见的消息提示
func (b *Bot) onRefreshClick(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx)); err != nil {
		slog.Warn("确认刷新交互失败", "error", err)
		return
	}
	if i.Message == nil {
		return
	}

	err := b.svc.Dashboards.RefreshOne(ctx, i.Message.ID)
	if err == nil {
		return
	}
	msg := apperr.UserMessage(err)
	if errors.Is(err, apperr.ErrNotFound) {
		msg = "This dashboard is no longer registered."
	}
	slog.Warn("刷新看板失败", "surface", i.Message.ID, "error", err)
	if _, ferr := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, discordgo.WithContext(ctx)); ferr != nil {
		slog.Warn("发送刷新失败提示失败", "error", ferr)
	}
}

// onChannelDelete 频道被删除时清理其中的看板登记
func (b *Bot) onChannelDelete(s *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil {
		return
	}
	ctx, cancel := context.WithTimeout(b.baseContext(), interactionTimeout)
	defer cancel()
	n, err := b.svc.Dashboards.RemoveByChannel(ctx, c.ID)
	if err != nil {
		slog.Warn("清理频道看板失败", "channel", c.ID, "error", err)
		return
	}
	if n > 0 {
		slog.Info("频道已删除，移除看板", "channel", c.ID, "count", n)
	}
}

// onMessageDelete 看板消息被删除时移除登记
func (b *Bot) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	if m.Message == nil {
		return
	}
	ctx, cancel := context.WithTimeout(b.baseContext(), interactionTimeout)
	defer cancel()
	if err := b.svc.Dashboards.Remove(ctx, m.ID); err != nil {
		slog.Warn("移除看板登记失败", "surface", m.ID, "error", err)
	}
}

// syncInBackground 命令触发的同步不阻塞交互回复
func (b *Bot) syncInBackground(tenantID string) {
	ctx := b.baseContext()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if _, err := b.svc.Dashboards.SyncAll(ctx, tenantID); err != nil {
			slog.Warn("手动同步看板失败", "tenant", tenantID, "error", err)
		}
	}()
}

func toResponse(reply commandReply) *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Document != nil {
		data.Embeds = []*discordgo.MessageEmbed{ToEmbed(*reply.Document)}
	}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

