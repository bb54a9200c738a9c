// Package notify is the observability sink: one structured line per run, Prometheus
// counters, and an optional mirror of short lines into a log chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/event"
	"github.com/SWAYAM31220/lootspy/internal/log"
	"github.com/SWAYAM31220/lootspy/internal/metrics"
	"github.com/SWAYAM31220/lootspy/internal/pipeline"
	"github.com/SWAYAM31220/lootspy/internal/transport"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const mirrorTimeout = 10 * time.Second

type Sink struct {
	logger  *log.Logger
	metrics *metrics.RelayMetrics
	sender  transport.Sender
	logChat *event.Handle
	wg      sync.WaitGroup
}

// NewSink builds a sink. metrics, sender and logChat may be nil; without a
// sender and a log chat nothing is mirrored.
func NewSink(logger *log.Logger, m *metrics.RelayMetrics, sender transport.Sender, logChat *event.Handle) *Sink {
	return &Sink{
		logger:  logger.Named("runs"),
		metrics: m,
		sender:  sender,
		logChat: logChat,
	}
}

// Announce logs a lifecycle line and mirrors it.
func (s *Sink) Announce(ctx context.Context, line string) {
	s.logger.Info(line)
	s.mirror(ctx, line)
}

// Report writes the run line for every outcome. Only forwarded and failed runs are mirrored.
func (s *Sink) Report(ctx context.Context, r pipeline.Result) {
	fields := []zapcore.Field{
		zap.String("outcome", string(r.Outcome)),
		zap.String("run_id", r.RunID),
		zap.Int64("origin", r.Origin.ID),
		zap.String("origin_tag", r.Origin.Tag()),
		zap.Int64("msg_id", r.MessageID),
		zap.String("key", string(r.Key)),
		zap.String("bucket", string(r.Bucket)),
		zap.Duration("duration", r.Duration),
	}
	if r.GroupID != "" {
		fields = append(fields, zap.String("group_id", r.GroupID))
	}
	if r.RowID != 0 {
		fields = append(fields, zap.Int64("row_id", r.RowID))
	}
	if r.Permalink != "" {
		fields = append(fields, zap.String("permalink", r.Permalink))
	}
	if r.Err != nil {
		fields = append(fields, zap.Error(r.Err))
	}
	if r.RollbackErr != nil {
		fields = append(fields, zap.NamedError("rollback_error", r.RollbackErr))
	}

	switch r.Outcome {
	case pipeline.Forwarded, pipeline.DuplicateSkipped, pipeline.EmptySkipped:
		s.logger.Info("Run finished", fields...)
	default:
		s.logger.Error("Run finished", fields...)
	}

	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(string(r.Outcome), r.Origin.Tag()).Inc()
		s.metrics.RunDuration.WithLabelValues(string(r.Outcome)).Observe(r.Duration.Seconds())
		if r.RollbackErr != nil {
			s.metrics.ReleaseFailureTotal.Inc()
		}
	}

	if line := FormatResult(r); line != "" {
		s.mirror(ctx, line)
	}
}

// FormatResult renders the log chat line for a run, or "" if the run is not mirrored.
func FormatResult(r pipeline.Result) string {
	var b strings.Builder
	switch r.Outcome {
	case pipeline.Forwarded:
		kind := "TEXT"
		switch {
		case r.GroupID != "":
			kind = "ALBUM"
		case r.Media:
			kind = "MEDIA"
		}
		fmt.Fprintf(&b, "✅ SENT %s\n", kind)
	case pipeline.RelayFailed:
		b.WriteString("❌ SEND ERROR\n")
	case pipeline.ReservationError:
		b.WriteString("❌ STORE ERROR\n")
	default:
		return ""
	}
	fmt.Fprintf(&b, "From: %s\nMsg ID: %d", r.Origin.Tag(), r.MessageID)
	if r.Permalink != "" {
		fmt.Fprintf(&b, "\n%s", r.Permalink)
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "\n%v", r.Err)
	}
	if r.RollbackErr != nil {
		fmt.Fprintf(&b, "\nrollback failed: %v", r.RollbackErr)
	}
	return b.String()
}

func (s *Sink) mirror(ctx context.Context, line string) {
	if s.sender == nil || s.logChat == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
		defer cancel()
		if _, err := s.sender.SendText(ctx, *s.logChat, line); err != nil {
			s.logger.Warn("Failed to mirror line to log chat", zap.Error(err))
		}
	}()
}

// Wait blocks until pending mirror sends are done.
func (s *Sink) Wait() {
	s.wg.Wait()
}
