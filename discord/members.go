package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/onnwee/lpbot/lp"
)

const searchLimit = 25

// FindMember resolves a stats query to a guild member. The query may be a
// mention, a raw user id, a username, a global display name or a nickname;
// names must match exactly, ignoring case.
func (b *Bot) FindMember(ctx context.Context, query string) (lp.Member, error) {
	opt := discordgo.WithContext(ctx)
	gid := b.guildID.String()

	if id, ok := parseUserRef(query); ok {
		m, err := b.session.GuildMember(gid, id.String(), opt)
		if err != nil {
			return lp.Member{}, fmt.Errorf("%w: %s: %w", lp.ErrMemberNotFound, query, err)
		}
		return toMember(m)
	}

	name := strings.TrimPrefix(strings.TrimSpace(query), "@")
	candidates, err := b.session.GuildMembersSearch(gid, name, searchLimit, opt)
	if err != nil {
		return lp.Member{}, fmt.Errorf("search members %q: %w", name, err)
	}
	m := matchMember(candidates, name)
	if m == nil {
		return lp.Member{}, fmt.Errorf("%w: %s", lp.ErrMemberNotFound, query)
	}
	return toMember(m)
}

// parseUserRef accepts <@id>, <@!id> or a bare id.
func parseUserRef(q string) (snowflake.ID, bool) {
	q = strings.TrimSpace(q)
	if strings.HasPrefix(q, "<@") && strings.HasSuffix(q, ">") {
		q = strings.TrimPrefix(strings.TrimSuffix(q[2:], ">"), "!")
	}
	if q == "" || strings.IndexFunc(q, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, false
	}
	id, err := snowflake.Parse(q)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// matchMember picks the first candidate whose username, global name or nick
// equals name. Search is a prefix match on Discord's side, so results need
// filtering.
func matchMember(candidates []*discordgo.Member, name string) *discordgo.Member {
	for _, m := range candidates {
		if m == nil || m.User == nil {
			continue
		}
		for _, n := range []string{m.User.Username, m.User.GlobalName, m.Nick} {
			if n != "" && strings.EqualFold(n, name) {
				return m
			}
		}
	}
	return nil
}

func toMember(m *discordgo.Member) (lp.Member, error) {
	if m == nil || m.User == nil {
		return lp.Member{}, lp.ErrMemberNotFound
	}
	id, err := snowflake.Parse(m.User.ID)
	if err != nil {
		return lp.Member{}, fmt.Errorf("member id: %w", err)
	}
	return lp.Member{ID: id, Name: displayName(m, m.User)}, nil
}
