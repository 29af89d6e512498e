package discord

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/onnwee/lpbot/lp"
)

// toMessage copies the fields the pipeline reads. REST messages carry no
// guild id, so the bot's guild is filled in.
func toMessage(m *discordgo.Message, guildID snowflake.ID) (lp.Message, error) {
	if m.Author == nil {
		return lp.Message{}, fmt.Errorf("message %s has no author", m.ID)
	}
	id, err := snowflake.Parse(m.ID)
	if err != nil {
		return lp.Message{}, fmt.Errorf("message id: %w", err)
	}
	channelID, err := snowflake.Parse(m.ChannelID)
	if err != nil {
		return lp.Message{}, fmt.Errorf("channel id: %w", err)
	}
	authorID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		return lp.Message{}, fmt.Errorf("author id: %w", err)
	}

	roles := make([]snowflake.ID, 0, len(m.MentionRoles))
	for _, r := range m.MentionRoles {
		if rid, err := snowflake.Parse(r); err == nil {
			roles = append(roles, rid)
		}
	}

	created := m.Timestamp
	if created.IsZero() {
		created = id.Time()
	}
	return lp.Message{
		ID:           id,
		ChannelID:    channelID,
		GuildID:      guildID,
		AuthorID:     authorID,
		AuthorName:   m.Author.Username,
		AuthorNick:   displayName(m.Member, m.Author),
		Content:      m.Content,
		RoleMentions: roles,
		CreatedAt:    created.UTC(),
	}, nil
}

// displayName is what the guild shows for a user: server nickname, then
// global display name, then username.
func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil && member != nil {
		user = member.User
	}
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

// chunk splits s into pieces of at most n bytes, preferring to break after a
// newline in the back half of a piece. Pieces never end inside a rune.
func chunk(s string, n int) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	for len(s) > n {
		cut := n
		if idx := strings.LastIndexByte(s[:n], '\n'); idx > n/2 {
			cut = idx + 1
		}
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = n
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
