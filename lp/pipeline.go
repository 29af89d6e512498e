package lp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/lpbot/telemetry"
)

// HandleRawPost records the listening party announced by msg.
//
// A message without a link, or one whose id is already stored, is a no-op.
// Unparseable links, metadata failures and column mismatches are returned as
// recoverable errors with nothing written. Store failures come back wrapped in
// ErrPersistence.
func (s *Session) HandleRawPost(ctx context.Context, msg Message) (err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "lp.HandleRawPost",
		attribute.String("message_id", msg.ID.String()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("message_id", msg.ID.String()),
		slog.String("component", "pipeline"),
	)

	link, ok := Extract(msg.Content)
	if !ok {
		log.Info("heard message has no spotify link, ignoring")
		return nil
	}
	if link.Category == CategoryNone {
		return fmt.Errorf("%w: %s", ErrUnparseableURL, link.URL)
	}

	exists, err := s.exists(ctx, msg)
	if err != nil {
		return err
	}
	if exists {
		log.Debug("message already recorded, skipping")
		telemetry.IncDuplicate()
		return nil
	}

	fields, err := s.resolver.Resolve(ctx, link.Category, link.URL)
	if err != nil {
		return err
	}

	rec := Record{
		MessageID:      msg.ID,
		CreatedAt:      msg.CreatedAt,
		IssuerID:       msg.AuthorID,
		IssuerName:     msg.AuthorName,
		IssuerNickname: msg.AuthorNick,
		SourceURL:      link.URL,
		Fields:         fields,
	}
	columns, values, err := Assemble(rec, s.columns)
	if err != nil {
		return err
	}

	if err := s.insert(ctx, columns, values); err != nil {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrFieldCountMismatch) {
			return err
		}
		return fmt.Errorf("%w: insert message %s: %w", ErrPersistence, msg.ID, err)
	}
	s.undo, s.hasUndo = msg.ID, true
	telemetry.IncRecorded(fields.Category.String())
	log.Info("listening party recorded",
		slog.String("category", fields.Category.String()),
		slog.String("url", link.URL))

	if !s.quiet {
		s.reply(ctx, msg, fmt.Sprintf("Logged listening party: %s", link.URL))
	}
	return nil
}

func (s *Session) exists(ctx context.Context, msg Message) (bool, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	start := time.Now()
	found, err := s.store.Exists(sctx, int64(msg.ID))
	telemetry.ObserveStore(time.Since(start))
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %w", ErrPersistence, msg.ID, err)
	}
	return found, nil
}

func (s *Session) insert(ctx context.Context, columns []string, values []any) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	var err error
	telemetry.TimeFunc(telemetry.StoreDuration, func() {
		err = s.store.Insert(sctx, columns, values)
	})
	return err
}
