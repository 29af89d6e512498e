package lp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// Kind is the outcome of classifying a message.
type Kind int

const (
	KindIrrelevant Kind = iota
	KindCommand
	KindRawPost
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindRawPost:
		return "raw_post"
	default:
		return "irrelevant"
	}
}

// Command is a parsed in-chat command.
type Command struct {
	Name string
	Args []string
}

// Classification is what Classify decided about a message.
type Classification struct {
	Kind    Kind
	Command Command
}

// Watch is the resolved set of channels and roles the bot listens to.
// Channels keep their configured order; backfill walks them in that order.
type Watch struct {
	Channels []snowflake.ID
	Roles    []snowflake.ID
}

// WatchesChannel reports whether id is a watched channel.
func (w Watch) WatchesChannel(id snowflake.ID) bool {
	return slices.Contains(w.Channels, id)
}

// MentionsRole reports whether any of the mentioned roles is watched.
func (w Watch) MentionsRole(mentions []snowflake.ID) bool {
	for _, id := range mentions {
		if slices.Contains(w.Roles, id) {
			return true
		}
	}
	return false
}

// ResolveWatch keeps the configured ids that exist in the guild. It fails with
// ErrNothingToWatch when either resulting set is empty.
func ResolveWatch(wantChannels, wantRoles, haveChannels, haveRoles []snowflake.ID) (Watch, error) {
	var w Watch
	for _, id := range wantChannels {
		if slices.Contains(haveChannels, id) && !slices.Contains(w.Channels, id) {
			w.Channels = append(w.Channels, id)
		}
	}
	for _, id := range wantRoles {
		if slices.Contains(haveRoles, id) && !slices.Contains(w.Roles, id) {
			w.Roles = append(w.Roles, id)
		}
	}
	if len(w.Channels) == 0 || len(w.Roles) == 0 {
		return w, fmt.Errorf("%w: channels=%d roles=%d", ErrNothingToWatch, len(w.Channels), len(w.Roles))
	}
	return w, nil
}

// Classifier decides whether a message concerns the bot.
type Classifier struct {
	BotID  snowflake.ID
	Prefix string
	Watch  Watch
}

// Classify applies the rules in order: own messages, then role mention or
// command prefix, then channel. Only then is the text tokenized.
func (c Classifier) Classify(msg Message) Classification {
	if msg.AuthorID == c.BotID {
		return Classification{Kind: KindIrrelevant}
	}
	prefixed := c.Prefix != "" && strings.HasPrefix(msg.Content, c.Prefix)
	if !prefixed && !c.Watch.MentionsRole(msg.RoleMentions) {
		return Classification{Kind: KindIrrelevant}
	}
	if !c.Watch.WatchesChannel(msg.ChannelID) {
		return Classification{Kind: KindIrrelevant}
	}
	if !prefixed {
		return Classification{Kind: KindRawPost}
	}

	tokens := strings.Fields(msg.Content)
	cmd := Command{Args: []string{}}
	if len(tokens) > 1 {
		cmd.Name = tokens[1]
		cmd.Args = tokens[2:]
	}
	return Classification{Kind: KindCommand, Command: cmd}
}
