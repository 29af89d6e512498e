// Package lp implements the listening-party pipeline: it classifies chat
// messages, pulls Spotify links out of them, resolves their metadata and records
// one row per party. A small command table drives backfill, undo and stats.
//
// A Session is owned by a single event loop. Nothing in it is locked; Run feeds
// it one message at a time and every handler runs to completion before the next
// message is taken.
package lp

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"

	"github.com/onnwee/lpbot/telemetry"
)

const (
	tracerName = "lpbot/lp"

	// DefaultUpdateLimit is how many recent messages per channel update reprocesses.
	DefaultUpdateLimit = 2
	// DefaultPrefix starts an in-chat command.
	DefaultPrefix = "!lp"
)

// Options configures a Session.
type Options struct {
	BotID        snowflake.ID
	Prefix       string
	Watch        Watch
	Columns      Columns
	UpdateLimit  int
	StoreTimeout time.Duration
}

// Session is the bot state for one connection: watch set, undo slot, backfill
// depth and the collaborators the pipeline talks to.
type Session struct {
	chat       Chat
	store      Store
	resolver   *Resolver
	classifier Classifier
	columns    Columns

	storeTimeout time.Duration
	updateLimit  int

	// undo holds the id of the last inserted record; hasUndo is false when empty.
	undo    snowflake.ID
	hasUndo bool

	// quiet suppresses confirmation replies while update runs.
	quiet bool

	commands map[string]command
}

// NewSession wires a session. Zero-valued options fall back to defaults.
func NewSession(chat Chat, store Store, resolver *Resolver, opts Options) *Session {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.UpdateLimit <= 0 {
		opts.UpdateLimit = DefaultUpdateLimit
	}
	s := &Session{
		chat:     chat,
		store:    store,
		resolver: resolver,
		classifier: Classifier{
			BotID:  opts.BotID,
			Prefix: opts.Prefix,
			Watch:  opts.Watch,
		},
		columns:      opts.Columns,
		storeTimeout: opts.StoreTimeout,
		updateLimit:  opts.UpdateLimit,
	}
	s.commands = commandTable()
	telemetry.SetUpdateLimit(s.updateLimit)
	return s
}

// UpdateLimit returns the current backfill depth.
func (s *Session) UpdateLimit() int { return s.updateLimit }

// PendingUndo returns the message id undo would remove, if any.
func (s *Session) PendingUndo() (snowflake.ID, bool) { return s.undo, s.hasUndo }

// Watch returns the resolved watch set.
func (s *Session) Watch() Watch { return s.classifier.Watch }

// Run handles events one at a time until ctx is done or events is closed.
// Handler failures are logged; they never end the loop.
func (s *Session) Run(ctx context.Context, events <-chan Message) error {
	slog.Info("listening",
		slog.Int("channels", len(s.classifier.Watch.Channels)),
		slog.Int("roles", len(s.classifier.Watch.Roles)),
		slog.String("component", "session"))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			evCtx := telemetry.WithCorrelation(ctx, uuid.NewString())
			if err := s.HandleMessage(evCtx, msg); err != nil {
				s.logFailure(evCtx, msg, err)
			}
		}
	}
}

// HandleMessage classifies msg and routes it to the pipeline or the command table.
func (s *Session) HandleMessage(ctx context.Context, msg Message) error {
	c := s.classifier.Classify(msg)
	telemetry.IncClassified(c.Kind.String())
	switch c.Kind {
	case KindRawPost:
		telemetry.LoggerWithCorr(ctx).Info("heard message",
			slog.String("message_id", msg.ID.String()),
			slog.String("channel_id", msg.ChannelID.String()),
			slog.String("component", "session"))
		return s.HandleRawPost(ctx, msg)
	case KindCommand:
		return s.dispatch(ctx, msg, c.Command)
	default:
		return nil
	}
}

func (s *Session) logFailure(ctx context.Context, msg Message, err error) {
	class := ClassifyError(err)
	level := slog.LevelWarn
	if class != ErrorClassRecoverable {
		level = slog.LevelError
	}
	telemetry.LoggerWithCorr(ctx).Log(ctx, level, "message dropped",
		slog.String("message_id", msg.ID.String()),
		slog.String("class", class.String()),
		slog.Any("err", err),
		slog.String("component", "session"))
}

func (s *Session) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout > 0 {
		return context.WithTimeout(ctx, s.storeTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session) reply(ctx context.Context, to Message, text string) {
	if err := s.chat.Reply(ctx, to, text); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("reply failed",
			slog.String("message_id", to.ID.String()),
			slog.Any("err", err),
			slog.String("component", "session"))
	}
}
