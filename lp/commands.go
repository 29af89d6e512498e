package lp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/onnwee/lpbot/telemetry"
)

type handlerFunc func(s *Session, ctx context.Context, msg Message, args []string) error

type command struct {
	minArgs int
	run     handlerFunc
}

func commandTable() map[string]command {
	return map[string]command{
		"update":    {minArgs: 0, run: (*Session).cmdUpdate},
		"set-limit": {minArgs: 1, run: (*Session).cmdSetLimit},
		"undo":      {minArgs: 0, run: (*Session).cmdUndo},
		"stats":     {minArgs: 2, run: (*Session).cmdStats},
	}
}

func (s *Session) dispatch(ctx context.Context, msg Message, c Command) error {
	cmd, ok := s.commands[c.Name]
	if !ok {
		telemetry.IncCommand("unknown", "rejected")
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
	if len(c.Args) < cmd.minArgs {
		telemetry.IncCommand(c.Name, "rejected")
		return fmt.Errorf("%w: %s needs %d, got %d", ErrTooFewArgs, c.Name, cmd.minArgs, len(c.Args))
	}
	telemetry.LoggerWithCorr(ctx).Info("running command",
		slog.String("command", c.Name),
		slog.Any("args", c.Args),
		slog.String("component", "commands"))
	if err := cmd.run(s, ctx, msg, c.Args); err != nil {
		telemetry.IncCommand(c.Name, "failed")
		return err
	}
	telemetry.IncCommand(c.Name, "ok")
	return nil
}

// cmdUpdate reprocesses the newest updateLimit messages of every watched
// channel without replying to any of them. A store failure ends the backfill.
func (s *Session) cmdUpdate(ctx context.Context, _ Message, _ []string) error {
	s.quiet = true
	defer func() { s.quiet = false }()

	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "commands"))
	processed := 0
	for _, channelID := range s.classifier.Watch.Channels {
		history, err := s.chat.History(ctx, channelID, s.updateLimit)
		if err != nil {
			return fmt.Errorf("fetch history of channel %s: %w", channelID, err)
		}
		for _, m := range history {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.classifier.Classify(m).Kind != KindRawPost {
				continue
			}
			processed++
			if err := s.HandleRawPost(ctx, m); err != nil {
				if ClassifyError(err) == ErrorClassPersistence {
					return err
				}
				s.logFailure(ctx, m, err)
			}
		}
	}
	log.Info("update finished", slog.Int("limit", s.updateLimit), slog.Int("processed", processed))
	return nil
}

func (s *Session) cmdSetLimit(ctx context.Context, _ Message, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fmt.Errorf("%w: set-limit %q is not a positive integer", ErrInvalidArgument, args[0])
	}
	old := s.updateLimit
	s.updateLimit = n
	telemetry.SetUpdateLimit(n)
	telemetry.LoggerWithCorr(ctx).Info("update limit changed",
		slog.Int("old", old),
		slog.Int("new", n),
		slog.String("component", "commands"))
	return nil
}

func (s *Session) cmdUndo(ctx context.Context, msg Message, _ []string) error {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "commands"))
	if !s.hasUndo {
		log.Info("nothing to undo")
		return nil
	}
	id := s.undo
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Delete(sctx, int64(id)); err != nil {
		return fmt.Errorf("%w: delete message %s: %w", ErrPersistence, id, err)
	}
	s.undo, s.hasUndo = 0, false
	log.Info("undid last insertion", slog.String("message_id", id.String()))
	s.reply(ctx, msg, fmt.Sprintf("Removed the listening party logged from message %s.", id))
	return nil
}

func (s *Session) cmdStats(ctx context.Context, msg Message, args []string) error {
	switch strings.ToLower(args[0]) {
	case "issuer":
		member, err := s.chat.FindMember(ctx, args[1])
		if err != nil {
			return fmt.Errorf("stats issuer %q: %w", args[1], err)
		}
		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		rows, err := s.store.IssuerArtists(sctx, int64(member.ID))
		if err != nil {
			return fmt.Errorf("%w: stats for issuer %s: %w", ErrPersistence, member.ID, err)
		}
		s.reply(ctx, msg, Summarize(member.Name, rows))
		return nil
	default:
		return fmt.Errorf("%w: unknown stats target %q", ErrInvalidArgument, args[0])
	}
}

// Summarize renders the stats reply for an issuer given the artists column of
// each of their records.
func Summarize(name string, rows [][]string) string {
	if len(rows) == 0 {
		return fmt.Sprintf("%s has not hosted any listening parties yet.", name)
	}
	parties := "listening parties"
	if len(rows) == 1 {
		parties = "listening party"
	}
	artist, n := MostRequested(rows)
	if artist == "" {
		return fmt.Sprintf("%s has hosted %d %s.", name, len(rows), parties)
	}
	return fmt.Sprintf("%s has hosted %d %s. Most requested artist: %s (%d).", name, len(rows), parties, artist, n)
}

// MostRequested returns the most frequent artist across rows. Ties go to the
// artist encountered first.
func MostRequested(rows [][]string) (string, int) {
	counts := make(map[string]int)
	var order []string
	for _, artists := range rows {
		for _, a := range artists {
			if _, ok := counts[a]; !ok {
				order = append(order, a)
			}
			counts[a]++
		}
	}
	best, bestN := "", 0
	for _, a := range order {
		if counts[a] > bestN {
			best, bestN = a, counts[a]
		}
	}
	return best, bestN
}
