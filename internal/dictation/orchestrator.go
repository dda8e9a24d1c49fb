package dictation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/livescribe/internal/observe"
	"github.com/MrWong99/livescribe/internal/transcript/stabilizer"
	"github.com/MrWong99/livescribe/internal/transcript/textmerge"
	"github.com/MrWong99/livescribe/pkg/audio"
	"github.com/MrWong99/livescribe/pkg/history"
	"github.com/MrWong99/livescribe/pkg/provider/stt"
)

// historyTimeout bounds the history write at the end of a session.
const historyTimeout = 5 * time.Second

// Orchestrator runs a single dictation session. Create one per session with
// [New] and call [Orchestrator.Run] once.
type Orchestrator struct {
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics
	ran     atomic.Bool
}

// New validates cfg, fills in defaults and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	var errs []error
	if cfg.Client == nil {
		errs = append(errs, errors.New("client is required"))
	}
	if cfg.Source == nil {
		errs = append(errs, errors.New("audio source is required"))
	}
	if cfg.Inserter == nil {
		errs = append(errs, errors.New("inserter is required"))
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeIncremental
	case ModeIncremental, ModeOnStop:
	default:
		errs = append(errs, fmt.Errorf("unknown insertion mode %q", cfg.Mode))
	}
	if cfg.CommitInterval < 0 || cfg.FinalizeTimeout < 0 || cfg.FinalSettle < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if cfg.Reconnect.MaxRetries < 0 {
		errs = append(errs, errors.New("reconnect max retries must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("dictation: invalid config: %w", err)
	}

	if cfg.FinalizeTimeout == 0 {
		cfg.FinalizeTimeout = DefaultFinalizeTimeout
	}
	if cfg.FinalSettle == 0 {
		cfg.FinalSettle = DefaultFinalSettle
	}
	if cfg.SinkName == "" {
		cfg.SinkName = "sink"
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		cfg:     cfg,
		log:     log.With("session_id", cfg.SessionID),
		metrics: cfg.Metrics,
	}, nil
}

// SessionID returns the ID of the session this Orchestrator runs.
func (o *Orchestrator) SessionID() string { return o.cfg.SessionID }

// Run opens the transcription connection and dictates until the audio
// source ends or ctx is cancelled. Cancelling ctx stops capture; it does not
// abort the session: the final transcript is still awaited for up to
// FinalizeTimeout and pending text is still inserted.
//
// Run returns a nil Result only when the connection could not be opened.
// Otherwise the Result describes the session even when an error is
// returned: [ErrConnectionLost] when the connection dropped and could not be
// re-established, or a wrapped audio read error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.ran.CompareAndSwap(false, true) {
		return nil, errors.New("dictation: session already ran")
	}

	ctx, span := observe.StartSessionSpan(ctx, o.cfg.SessionID, o.cfg.Connection.Model)

	events, err := o.cfg.Client.Connect(ctx, o.cfg.Connection)
	if err != nil {
		err = fmt.Errorf("dictation: connect: %w", err)
		observe.EndSpan(span, err)
		return nil, err
	}

	s := &session{
		o:    o,
		stab: stabilizer.New(),
		res: &Result{
			SessionID: o.cfg.SessionID,
			StartedAt: time.Now(),
		},
		rc: &reconnector{
			policy: o.cfg.Reconnect,
			client: o.cfg.Client,
			cfg:    o.cfg.Connection,
			log:    o.log,
		},
	}
	o.metrics.SessionStarted(ctx)
	o.log.Info("dictation: session started", "model", o.cfg.Connection.Model, "mode", o.cfg.Mode)

	audioDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(audioDone)
		return s.pump(gctx)
	})
	g.Go(func() error {
		return s.consume(ctx, events, audioDone)
	})
	err = g.Wait()

	res := s.res
	res.EndedAt = time.Now()
	res.Reconnects = s.rc.total

	o.saveHistory(ctx, res)
	o.metrics.SessionEnded(ctx, res.Duration(), err)
	observe.EndSpan(span, err)
	if err != nil {
		o.log.Warn("dictation: session ended with error", "err", err, "duration", res.Duration())
	} else {
		o.log.Info("dictation: session ended",
			"duration", res.Duration(),
			"chars", len(res.Text),
			"corrections", len(res.Corrections),
			"reconnects", res.Reconnects,
		)
	}
	return res, err
}

func (o *Orchestrator) saveHistory(ctx context.Context, res *Result) {
	if o.cfg.History == nil || res.Text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	err := o.cfg.History.Save(ctx, history.Entry{
		SessionID: res.SessionID,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
		Model:     o.cfg.Connection.Model,
		Text:      res.Text,
	})
	if err != nil {
		o.log.Warn("dictation: failed to save history", "err", err)
	}
}

// session is the mutable state of one Run. Everything except the pump is
// owned by the consumer goroutine.
type session struct {
	o    *Orchestrator
	stab *stabilizer.Stabilizer
	res  *Result
	rc   *reconnector

	// live is the current segment's hypothesis, accumulated from partials.
	live string

	// lastErr is the text of the most recent error event.
	lastErr string
}

// ── Audio pump ──────────────────────────────────────────────────────────────

// pump streams audio chunks until the source ends or ctx is done, issuing a
// non-final commit at most every CommitInterval.
func (s *session) pump(ctx context.Context) error {
	client := s.o.cfg.Client
	interval := s.o.cfg.CommitInterval
	lastCommit := time.Now()

	for {
		chunk, err := s.o.cfg.Source.ReadChunk(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.o.log.Debug("dictation: audio source ended")
				return nil
			case ctx.Err() != nil:
				return nil
			}
			return fmt.Errorf("dictation: read audio: %w", err)
		}
		if len(chunk) == 0 {
			continue
		}

		client.SendAudioChunk(chunk)
		s.o.metrics.RecordChunk(ctx, len(chunk))

		if interval > 0 && time.Since(lastCommit) >= interval {
			lastCommit = time.Now()
			if client.SendCommit(false) {
				s.o.metrics.RecordCommit(ctx, false)
			}
		}
	}
}

// ── Event consumer ──────────────────────────────────────────────────────────

// consume processes the event stream. Once audioDone is closed it sends the
// final commit and waits for the final transcript, then finishes the
// session.
func (s *session) consume(ctx context.Context, events <-chan stt.Event, audioDone <-chan struct{}) error {
	var (
		stop       = audioDone
		finalizing bool
		deadline   <-chan time.Time
		settle     <-chan time.Time
	)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				ev = stt.Event{Kind: stt.EventDisconnected}
			}
			s.o.metrics.RecordTranscriptEvent(ctx, string(ev.Kind))

			switch ev.Kind {
			case stt.EventConnected:
				s.rc.connected()
				s.o.log.Debug("dictation: connected")

			case stt.EventStatus:
				s.o.log.Debug("dictation: status", "text", ev.Text)

			case stt.EventError:
				s.lastErr = ev.Text
				s.o.metrics.RecordConnectionError(ctx)
				s.o.log.Warn("dictation: transcription error", "err", ev.Text)

			case stt.EventPartialTranscript:
				s.onPartial(ctx, ev.Text)

			case stt.EventFinalTranscript:
				s.onFinal(ctx, ev.Text)
				if finalizing {
					settle = time.After(s.o.cfg.FinalSettle)
				}

			case stt.EventDisconnected:
				if finalizing {
					s.finish(ctx, nil)
					return nil
				}
				next, err := s.rc.next(ctx, audioDone, func(err error) {
					s.o.metrics.RecordReconnect(ctx, err)
				})
				if err != nil {
					if errors.Is(err, errStopped) || ctx.Err() != nil {
						s.finish(ctx, nil)
						return nil
					}
					if s.lastErr != "" {
						err = fmt.Errorf("%w: %s", err, s.lastErr)
					}
					s.finish(ctx, nil)
					return err
				}
				s.stab.ResetSegment()
				s.live = ""
				events = next
			}

		case <-stop:
			stop = nil
			finalizing = true
			if !s.o.cfg.Client.SendCommit(true) {
				s.finish(ctx, events)
				return nil
			}
			s.o.metrics.RecordCommit(ctx, true)
			deadline = time.After(s.o.cfg.FinalizeTimeout)

		case <-deadline:
			s.o.log.Warn("dictation: final transcript timed out", "timeout", s.o.cfg.FinalizeTimeout)
			s.finish(ctx, events)
			return nil

		case <-settle:
			s.finish(ctx, events)
			return nil
		}
	}
}

func (s *session) onPartial(ctx context.Context, text string) {
	s.live, _ = textmerge.MergeIncremental(s.live, text)
	delta, unstable := s.stab.Commit(textmerge.Normalize(s.live), false)
	s.stabilized(ctx, delta, unstable)
}

func (s *session) onFinal(ctx context.Context, text string) {
	s.live = ""
	text = textmerge.Normalize(text)
	if text == "" {
		s.stab.ResetSegment()
		s.stabilized(ctx, "", "")
		return
	}
	delta, unstable := s.stab.Commit(text, true)
	s.stabilized(ctx, delta, unstable)
}

// stabilized publishes the outcome of one stabilization step.
func (s *session) stabilized(ctx context.Context, delta, unstable string) {
	if ov := s.o.cfg.Overlay; ov != nil {
		ov.Update(s.stab.CommittedText(), unstable)
	}
	if s.o.cfg.Mode == ModeIncremental && delta != "" {
		_, pending := s.stab.PromotePending()
		s.insert(ctx, pending)
	}
}

// finish inserts whatever is still pending and closes the connection. If
// events is non-nil it is drained in the background.
func (s *session) finish(ctx context.Context, events <-chan stt.Event) {
	committed, pending := s.stab.PromotePending()
	s.insert(ctx, pending)
	s.res.RawText = committed

	if ov := s.o.cfg.Overlay; ov != nil {
		ov.Done(s.res.Text)
	}
	s.o.cfg.Client.Disconnect()
	if events != nil {
		go audio.Drain(events)
	}
}

// ── Insertion ───────────────────────────────────────────────────────────────

// insert corrects text and hands it to the inserter. Committed text is
// inserted even after ctx is cancelled. Failures are logged and counted; the
// session carries on.
func (s *session) insert(ctx context.Context, text string) {
	if text == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	text = s.correct(ctx, text)

	ctx, span := observe.StartInsertSpan(ctx, s.o.cfg.SinkName, len(text))
	start := time.Now()
	err := s.o.cfg.Inserter.Insert(ctx, text)
	s.o.metrics.RecordInsert(ctx, s.o.cfg.SinkName, time.Since(start), err)
	observe.EndSpan(span, err)
	s.res.Text += text
	if err != nil {
		s.res.InsertFailures++
		observe.WithTrace(ctx, s.o.log).Warn("dictation: insert failed", "sink", s.o.cfg.SinkName, "err", err)
	}
}

func (s *session) correct(ctx context.Context, text string) string {
	c := s.o.cfg.Corrector
	if c == nil {
		return text
	}
	out, err := c.Correct(ctx, text)
	if err != nil {
		s.o.log.Warn("dictation: vocabulary correction failed", "err", err)
		return text
	}
	for _, corr := range out.Corrections {
		s.o.metrics.RecordCorrection(ctx, corr.Method)
		s.o.log.Debug("dictation: corrected",
			"original", corr.Original,
			"corrected", corr.Corrected,
			"confidence", corr.Confidence,
		)
	}
	s.res.Corrections = append(s.res.Corrections, out.Corrections...)
	return out.Corrected
}
