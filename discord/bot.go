// Package discord adapts a discordgo session to the lp.Chat interface and
// turns gateway message events into a stream of lp.Message values.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/onnwee/lpbot/lp"
)

const (
	// maxMessageLen is Discord's limit on message content.
	maxMessageLen = 2000
	// maxPage is the most messages one history request returns.
	maxPage = 100

	eventBuffer = 256
)

// Bot is a connected Discord session scoped to one guild.
type Bot struct {
	session *discordgo.Session
	guildID snowflake.ID
	botID   snowflake.ID

	events    chan lp.Message
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session for token. Nothing is opened until Start.
func New(token string, guildID snowflake.ID) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	// Handlers run on the gateway goroutine so events reach the channel in
	// the order Discord sent them.
	session.SyncEvents = true

	return &Bot{
		session: session,
		guildID: guildID,
		events:  make(chan lp.Message, eventBuffer),
		done:    make(chan struct{}),
	}, nil
}

// Start opens the gateway connection and fetches the bot's own identity.
func (b *Bot) Start(ctx context.Context) error {
	slog.Info("starting discord bot", slog.String("guild_id", b.guildID.String()), slog.String("component", "discord"))

	b.session.AddHandler(b.onMessageCreate)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := b.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		_ = b.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	id, err := snowflake.Parse(user.ID)
	if err != nil {
		_ = b.session.Close()
		return fmt.Errorf("parse bot id %q: %w", user.ID, err)
	}
	b.botID = id

	slog.Info("discord bot connected",
		slog.String("username", user.Username),
		slog.String("id", user.ID),
		slog.String("component", "discord"))
	return nil
}

// BotID is the bot's own user id; zero before Start.
func (b *Bot) BotID() snowflake.ID { return b.botID }

// Events delivers guild messages in arrival order. The channel is never
// closed; consumers stop on context cancellation.
func (b *Bot) Events() <-chan lp.Message { return b.events }

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.GuildID != b.guildID.String() {
		return
	}
	msg, err := toMessage(m.Message, b.guildID)
	if err != nil {
		slog.Warn("dropping malformed message", slog.String("message_id", m.ID), slog.Any("err", err), slog.String("component", "discord"))
		return
	}
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

// ResolveWatch keeps the configured channels (threads included) and roles that
// exist in the guild.
func (b *Bot) ResolveWatch(ctx context.Context, wantChannels, wantRoles []snowflake.ID) (lp.Watch, error) {
	opt := discordgo.WithContext(ctx)
	gid := b.guildID.String()

	chans, err := b.session.GuildChannels(gid, opt)
	if err != nil {
		return lp.Watch{}, fmt.Errorf("list guild channels: %w", err)
	}
	if threads, err := b.session.GuildThreadsActive(gid, opt); err != nil {
		slog.Warn("could not list active threads", slog.Any("err", err), slog.String("component", "discord"))
	} else {
		chans = append(chans, threads.Threads...)
	}
	roles, err := b.session.GuildRoles(gid, opt)
	if err != nil {
		return lp.Watch{}, fmt.Errorf("list guild roles: %w", err)
	}

	haveChannels := make([]snowflake.ID, 0, len(chans))
	for _, c := range chans {
		if id, err := snowflake.Parse(c.ID); err == nil {
			haveChannels = append(haveChannels, id)
		}
	}
	haveRoles := make([]snowflake.ID, 0, len(roles))
	for _, r := range roles {
		if id, err := snowflake.Parse(r.ID); err == nil {
			haveRoles = append(haveRoles, id)
		}
	}

	w, err := lp.ResolveWatch(wantChannels, wantRoles, haveChannels, haveRoles)
	for _, c := range chans {
		if id, _ := snowflake.Parse(c.ID); w.WatchesChannel(id) {
			slog.Info("found channel", slog.String("name", c.Name), slog.String("id", c.ID), slog.String("component", "discord"))
		}
	}
	for _, r := range roles {
		if id, _ := snowflake.Parse(r.ID); w.MentionsRole([]snowflake.ID{id}) {
			slog.Info("found role", slog.String("name", r.Name), slog.String("id", r.ID), slog.String("component", "discord"))
		}
	}
	return w, err
}

// Reply answers to in its channel without pinging anyone. Text longer than
// one message is split; only the first part is threaded as a reply.
func (b *Bot) Reply(ctx context.Context, to lp.Message, text string) error {
	channelID := to.ChannelID.String()
	for i, part := range chunk(text, maxMessageLen) {
		send := &discordgo.MessageSend{
			Content:         part,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		}
		if i == 0 {
			send.Reference = &discordgo.MessageReference{
				MessageID: to.ID.String(),
				ChannelID: channelID,
				GuildID:   b.guildID.String(),
			}
		}
		if _, err := b.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// History returns up to limit of the newest messages in channelID, newest
// first, paging past Discord's per-request cap.
func (b *Bot) History(ctx context.Context, channelID snowflake.ID, limit int) ([]lp.Message, error) {
	out := make([]lp.Message, 0, limit)
	before := ""
	for len(out) < limit {
		n := min(limit-len(out), maxPage)
		page, err := b.session.ChannelMessages(channelID.String(), n, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("channel history %s: %w", channelID, err)
		}
		for _, m := range page {
			msg, err := toMessage(m, b.guildID)
			if err != nil {
				slog.Warn("skipping malformed history message", slog.String("message_id", m.ID), slog.Any("err", err), slog.String("component", "discord"))
				continue
			}
			if m.Member == nil {
				msg.AuthorNick = b.cachedNick(m)
			}
			out = append(out, msg)
		}
		if len(page) < n {
			break
		}
		before = page[len(page)-1].ID
	}
	return out, nil
}

// cachedNick looks the author up in the state cache; REST history carries no
// member data.
func (b *Bot) cachedNick(m *discordgo.Message) string {
	if m.Author == nil || b.session.State == nil {
		return displayName(nil, m.Author)
	}
	member, err := b.session.State.Member(b.guildID.String(), m.Author.ID)
	if err != nil {
		return displayName(nil, m.Author)
	}
	return displayName(member, m.Author)
}

// Close disconnects from the gateway. Pending sends to Events are abandoned.
func (b *Bot) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.session.Close()
		if errors.Is(err, discordgo.ErrWSNotFound) {
			err = nil
		}
	})
	return err
}
