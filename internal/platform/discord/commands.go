package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/render"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"github.com/yuqie6/ResourceTally/internal/service"
)

const (
	cmdContribute  = "contribute"
	cmdProgress    = "progress"
	cmdLeaderboard = "leaderboard"
	cmdTarget      = "target"
	cmdDashboard   = "dashboard"
	cmdReport      = "report"
)

// commandRequest 与 discordgo 解耦后的一次斜杠命令调用
type commandRequest struct {
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	Admin     bool
	Sub       string
	Options   map[string]any
}

func (r commandRequest) str(name string) string {
	v, _ := r.Options[name].(string)
	return strings.TrimSpace(v)
}

func (r commandRequest) int(name string) (int64, bool) {
	v, ok := r.Options[name].(int64)
	return v, ok
}

func (r commandRequest) bool(name string) (bool, bool) {
	v, ok := r.Options[name].(bool)
	return v, ok
}

func (r commandRequest) tags(name string) ([]string, error) {
	set, err := schema.ParseTagList(r.str(name))
	if err != nil {
		return nil, apperr.Invalid("标签格式错误: %v", err)
	}
	return set, nil
}

// commandReply 命令回复：文本或文档二选一
type commandReply struct {
	Content   string
	Document  *dto.DisplayDocument
	Ephemeral bool
}

func textReply(format string, args ...any) commandReply {
	return commandReply{Content: fmt.Sprintf(format, args...), Ephemeral: true}
}

// Services 命令处理依赖的业务服务
type Services struct {
	Ledger     *service.LedgerService
	Aggregator *service.Aggregator
	Dashboards *service.DashboardService
	Reports    *service.ReportService
}

type commandHandler func(ctx context.Context, req commandRequest) (commandReply, error)

type commandRouter struct {
	svc      Services
	handlers map[string]commandHandler
	admin    map[string]bool

	// sync 在后台触发整 guild 看板同步
	sync func(tenantID string)
}

func newCommandRouter(svc Services, sync func(tenantID string)) *commandRouter {
	r := &commandRouter{svc: svc, sync: sync}
	r.handlers = map[string]commandHandler{
		cmdContribute:  r.contribute,
		cmdProgress:    r.progress,
		cmdLeaderboard: r.leaderboard,
		cmdTarget:      r.target,
		cmdDashboard:   r.dashboard,
		cmdReport:      r.report,
	}
	r.admin = map[string]bool{cmdTarget: true, cmdDashboard: true, cmdReport: true}
	return r
}

// dispatch 执行命令；业务错误被翻译为面向用户的短消息
func (r *commandRouter) dispatch(ctx context.Context, name string, req commandRequest) commandReply {
	h, ok := r.handlers[name]
	if !ok {
		return textReply("Unknown command.")
	}
	if req.GuildID == "" {
		return textReply("This command can only be used in a server.")
	}
	if r.admin[name] && !req.Admin {
		return textReply("You need the Manage Server permission for this.")
	}
	reply, err := h(ctx, req)
	if err != nil {
		if !apperr.IsKnown(err) {
			slog.Error("命令执行失败", "command", name, "sub", req.Sub, "guild", req.GuildID, "error", err)
		} else {
			slog.Debug("命令被拒绝", "command", name, "sub", req.Sub, "guild", req.GuildID, "error", err)
		}
		return textReply("%s", apperr.UserMessage(err))
	}
	return reply
}

func (r *commandRouter) contribute(ctx context.Context, req commandRequest) (commandReply, error) {
	amount, _ := req.int("amount")
	res, err := r.svc.Ledger.AddContribution(ctx, service.AddContributionRequest{
		TenantID: req.GuildID,
		Action:   req.str("action"),
		Resource: req.str("resource"),
		Amount:   amount,
		Location: req.str("location"),
		UserID:   req.UserID,
		Username: req.Username,
	})
	if err != nil {
		return commandReply{}, err
	}
	return commandReply{Content: fmt.Sprintf("Recorded +%s %s for %s / %s. Progress: %s / %s (%d%%)",
		render.Amount(amount), res.Unit, req.str("action"), req.str("resource"),
		render.Amount(res.NewCurrentAmount), render.Amount(res.TargetAmount), res.Percentage)}, nil
}

func (r *commandRouter) progress(ctx context.Context, req commandRequest) (commandReply, error) {
	tags, err := req.tags("tags")
	if err != nil {
		return commandReply{}, err
	}
	doc, err := r.svc.Dashboards.Preview(ctx, req.GuildID, tags, "")
	if err != nil {
		return commandReply{}, err
	}
	return commandReply{Document: &doc}, nil
}

func (r *commandRouter) leaderboard(ctx context.Context, req commandRequest) (commandReply, error) {
	limit, ok := req.int("limit")
	if !ok || limit <= 0 {
		limit = 10
	}
	if limit > 25 {
		limit = 25
	}
	action := strings.ToLower(req.str("action"))
	rows, err := r.svc.Aggregator.TopContributors(ctx, req.GuildID, int(limit), action)
	if err != nil {
		return commandReply{}, err
	}
	doc := render.Leaderboard(rows, action)
	return commandReply{Document: &doc}, nil
}

func (r *commandRouter) target(ctx context.Context, req commandRequest) (commandReply, error) {
	action, resource := req.str("action"), req.str("resource")

	switch req.Sub {
	case "set":
		amount, _ := req.int("amount")
		tr := service.TargetRequest{
			TenantID:  req.GuildID,
			Action:    action,
			Resource:  resource,
			Amount:    amount,
			CreatedBy: req.UserID,
		}
		if _, ok := req.Options["unit"]; ok {
			unit := req.str("unit")
			tr.Unit = &unit
		}
		if _, ok := req.Options["tags"]; ok {
			tags, err := req.tags("tags")
			if err != nil {
				return commandReply{}, err
			}
			tr.Tags = tags
		}
		id, err := r.svc.Ledger.CreateOrUpdateTarget(ctx, tr)
		if err != nil {
			return commandReply{}, err
		}
		return textReply("Target #%d set: %s / %s = %s.", id, action, resource, render.Amount(amount)), nil

	case "reset", "remove":
		t, err := r.svc.Ledger.FindTarget(ctx, req.GuildID, action, resource)
		if err != nil {
			return commandReply{}, err
		}
		if req.Sub == "reset" {
			if err := r.svc.Ledger.ResetProgress(ctx, t.ID); err != nil {
				return commandReply{}, err
			}
			return textReply("Progress for %s / %s reset.", t.Action, t.Resource), nil
		}
		if err := r.svc.Ledger.DeleteTarget(ctx, t.ID); err != nil {
			return commandReply{}, err
		}
		return textReply("Target %s / %s removed.", t.Action, t.Resource), nil
	}
	return commandReply{}, apperr.Invalid("未知子命令: %s", req.Sub)
}

func (r *commandRouter) dashboard(ctx context.Context, req commandRequest) (commandReply, error) {
	switch req.Sub {
	case "create":
		tags, err := req.tags("tags")
		if err != nil {
			return commandReply{}, err
		}
		channelID := req.str("channel")
		if channelID == "" {
			channelID = req.ChannelID
		}
		d, err := r.svc.Dashboards.CreateDashboard(ctx, service.CreateDashboardRequest{
			OwnerTenantID:  req.GuildID,
			ChannelID:      channelID,
			SourceTenantID: req.str("source"),
			Tags:           tags,
			Title:          req.str("title"),
			CreatedBy:      req.UserID,
		})
		if err != nil {
			return commandReply{}, err
		}
		if d.Scope().Shared() {
			return textReply("Dashboard created in <#%s>, showing data from server %s.", d.ChannelID, d.Scope().Rendered), nil
		}
		return textReply("Dashboard created in <#%s>.", d.ChannelID), nil

	case "sync":
		if r.sync != nil {
			r.sync(req.GuildID)
		}
		return textReply("Dashboard sync started."), nil
	}
	return commandReply{}, apperr.Invalid("未知子命令: %s", req.Sub)
}

func (r *commandRouter) report(ctx context.Context, req commandRequest) (commandReply, error) {
	if req.Sub != "set" {
		return commandReply{}, apperr.Invalid("未知子命令: %s", req.Sub)
	}
	current, err := r.svc.Reports.Get(ctx, req.GuildID)
	if err != nil {
		return commandReply{}, err
	}
	enabled, ok := req.bool("enabled")
	if !ok {
		enabled = true
	}
	setting := schema.AutoReportSetting{
		Enabled:   enabled,
		ChannelID: req.str("channel"),
		Time:      req.str("time"),
	}
	if setting.ChannelID == "" {
		setting.ChannelID = current.ChannelID
	}
	if setting.Time == "" {
		setting.Time = current.Time
	}
	if err := r.svc.Reports.Configure(ctx, req.GuildID, setting); err != nil {
		return commandReply{}, err
	}
	if !enabled {
		return textReply("Daily report disabled."), nil
	}
	return textReply("Daily report will be posted in <#%s> at %s.", setting.ChannelID, setting.Time), nil
}

// commandDefinitions 注册到 Discord 的斜杠命令
func commandDefinitions() []*discordgo.ApplicationCommand {
	manageServer := int64(discordgo.PermissionManageServer)
	str := func(name, desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: desc, Required: required}
	}
	integer := func(name, desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: name, Description: desc, Required: required}
	}
	channel := func(name, desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         name,
			Description:  desc,
			Required:     required,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		}
	}
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: opts}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdContribute,
			Description: "Record collected resources toward a target",
			Options: []*discordgo.ApplicationCommandOption{
				str("action", "Action type, e.g. mining", true),
				str("resource", "Resource, e.g. copper", true),
				integer("amount", "Amount collected", true),
				str("location", "Where it was collected", false),
			},
		},
		{
			Name:        cmdProgress,
			Description: "Show current progress",
			Options:     []*discordgo.ApplicationCommandOption{str("tags", "Comma separated tag filter", false)},
		},
		{
			Name:        cmdLeaderboard,
			Description: "Show top contributors",
			Options: []*discordgo.ApplicationCommandOption{
				str("action", "Only count this action", false),
				integer("limit", "Number of entries (max 25)", false),
			},
		},
		{
			Name:                     cmdTarget,
			Description:              "Manage targets",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				sub("set", "Create or update a target",
					str("action", "Action type", true),
					str("resource", "Resource", true),
					integer("amount", "Target amount", true),
					str("unit", "Unit of measure", false),
					str("tags", "Comma separated tags", false)),
				sub("reset", "Clear all contributions of a target",
					str("action", "Action type", true),
					str("resource", "Resource", true)),
				sub("remove", "Delete a target and its contributions",
					str("action", "Action type", true),
					str("resource", "Resource", true)),
			},
		},
		{
			Name:                     cmdDashboard,
			Description:              "Manage live dashboards",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				sub("create", "Post a dashboard that updates automatically",
					channel("channel", "Channel to post in", false),
					str("tags", "Comma separated tag filter", false),
					str("source", "Show another server's data (server id)", false),
					str("title", "Dashboard title", false)),
				sub("sync", "Refresh every dashboard showing this server"),
			},
		},
		{
			Name:                     cmdReport,
			Description:              "Configure the daily report",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				sub("set", "Set daily report channel and time",
					channel("channel", "Channel to post in", false),
					str("time", "Local time HH:MM", false),
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Enable or disable"}),
			},
		},
	}
}

// toRequest 从交互中提取命令名与参数
func toRequest(i *discordgo.InteractionCreate) (string, commandRequest) {
	data := i.ApplicationCommandData()
	req := commandRequest{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Options:   map[string]any{},
	}
	if i.Member != nil && i.Member.User != nil {
		req.UserID = i.Member.User.ID
		req.Username = displayName(i.Member)
		req.Admin = i.Member.Permissions&discordgo.PermissionManageServer != 0
	} else if i.User != nil {
		req.UserID = i.User.ID
		req.Username = i.User.Username
	}

	opts := data.Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		req.Sub = opts[0].Name
		opts = opts[0].Options
	}
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionInteger:
			req.Options[o.Name] = o.IntValue()
		case discordgo.ApplicationCommandOptionBoolean:
			req.Options[o.Name] = o.BoolValue()
		case discordgo.ApplicationCommandOptionString:
			req.Options[o.Name] = o.StringValue()
		case discordgo.ApplicationCommandOptionChannel:
			// 频道参数的原始值就是频道 ID
			if id, ok := o.Value.(string); ok {
				req.Options[o.Name] = id
			}
		}
	}
	return data.Name, req
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}
