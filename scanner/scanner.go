// Package scanner runs QR scan sessions over a stream of camera frames.
//
// A Session reads frames from a Source, looks for symbols with a Detector
// and reports matches to a Completion callback. The frame loop always runs
// on its own goroutine.
//
// By default a session delivers the first match only and ignores further
// symbols until Reset. In continuous mode it delivers at most one match per
// scan interval.
//
// Example:
//
//	s := scanner.New(scanner.Files("frame.png"), func(res scanner.Result, err error) {
//	    if err != nil {
//	        log.Println(err)
//	        return
//	    }
//	    fmt.Println(res.Text)
//	})
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	s.Wait()
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/rbaliyan/qrshare/qrcode"
)

var (
	// ErrBadInput is reported when the session has no frame source.
	ErrBadInput = errors.New("scanner: no usable frame source")

	// ErrBadOutput is reported when the requested code types cannot be
	// detected.
	ErrBadOutput = errors.New("scanner: unsupported code types")

	// ErrRunning is returned by Start on a session that is already running.
	ErrRunning = errors.New("scanner: session already running")
)

// InitError is reported when the frame source fails to open.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return "scanner: init: " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// CodeType names a symbology.
type CodeType string

// QR is the QR code symbology, the only one the default detector reads.
const QR CodeType = "qr"

// Result is a delivered match.
type Result struct {
	Text      string
	Type      CodeType
	SessionID string
	ScannedAt time.Time
}

// Completion receives each match or a setup failure. Exactly one of the
// arguments is meaningful: err is nil on success.
type Completion func(Result, error)

// Detector finds a symbol in a frame. It returns an error wrapping
// qrcode.ErrNotFound for frames without one.
type Detector interface {
	Detect(img image.Image) (string, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(image.Image) (string, error)

// Detect calls f.
func (f DetectorFunc) Detect(img image.Image) (string, error) {
	return f(img)
}

// Feedback signals a successful scan to the user, e.g. a vibration.
type Feedback interface {
	Success()
}

// FeedbackFunc adapts a function to Feedback.
type FeedbackFunc func()

// Success calls f.
func (f FeedbackFunc) Success() {
	f()
}

// Session is a scan session. It is safe for concurrent use.
type Session struct {
	source     Source
	completion Completion
	opts       *options
	logger     *slog.Logger

	mu       sync.Mutex
	id       string
	finished bool
	gate     *rate.Sometimes
	cancel   context.CancelFunc
	done     chan struct{}
	running  atomic.Bool

	frames     metric.Int64Counter
	matches    metric.Int64Counter
	suppressed metric.Int64Counter
	attrs      metric.MeasurementOption
}

// New creates a session reading from source and reporting to completion.
// The session does nothing until Start.
func New(source Source, completion Completion, opts ...Option) *Session {
	o := newOptions(opts...)
	if completion == nil {
		completion = func(Result, error) {}
	}

	mode := "single"
	if o.continuous {
		mode = "continuous"
	}

	meter := otel.Meter("qrshare.scanner")
	frames, _ := meter.Int64Counter("qrshare.scanner.frames",
		metric.WithDescription("Number of frames inspected"),
		metric.WithUnit("{frame}"),
	)
	matches, _ := meter.Int64Counter("qrshare.scanner.matches",
		metric.WithDescription("Number of matches delivered"),
		metric.WithUnit("{match}"),
	)
	suppressed, _ := meter.Int64Counter("qrshare.scanner.suppressed",
		metric.WithDescription("Number of matches dropped by debouncing"),
		metric.WithUnit("{match}"),
	)

	s := &Session{
		source:     source,
		completion: completion,
		opts:       o,
		frames:     frames,
		matches:    matches,
		suppressed: suppressed,
		attrs:      metric.WithAttributes(attribute.String("mode", mode)),
	}
	s.id = uuid.NewString()
	s.gate = &rate.Sometimes{Interval: o.interval}
	s.logger = o.logger
	return s
}

// ID returns the current session id. Reset assigns a new one.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Running reports whether the frame loop is active.
func (s *Session) Running() bool {
	return s.running.Load()
}

// Start opens the source and runs the frame loop on a new goroutine.
//
// Setup failures (ErrBadOutput, ErrBadInput, *InitError) are delivered to
// the completion and also returned. With simulated data the source is not
// opened and the data is delivered as the only match.
func (s *Session) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}

	if err := s.checkCodeTypes(); err != nil {
		return s.fail(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var frames <-chan image.Image
	if s.opts.simulated == "" {
		if s.source == nil {
			cancel()
			return s.fail(ErrBadInput)
		}
		var err error
		frames, err = s.source.Open(ctx)
		if err != nil {
			cancel()
			return s.fail(&InitError{Err: err})
		}
		if frames == nil {
			cancel()
			return s.fail(ErrBadInput)
		}
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(ctx, cancel, frames, done)
	return nil
}

func (s *Session) checkCodeTypes() error {
	if len(s.opts.codeTypes) == 0 {
		return fmt.Errorf("%w: none requested", ErrBadOutput)
	}
	for _, t := range s.opts.codeTypes {
		if t != QR {
			return fmt.Errorf("%w: %s", ErrBadOutput, t)
		}
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.running.Store(false)
	s.logger.Warn("scan session failed to start", "error", err)
	s.completion(Result{}, err)
	return err
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, frames <-chan image.Image, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)
	defer cancel()

	if s.opts.simulated != "" {
		s.logger.Debug("delivering simulated data")
		s.Submit(s.opts.simulated)
		return
	}

	s.logger.Debug("scan session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scan session stopped")
			return
		case img, ok := <-frames:
			if !ok {
				s.logger.Debug("frame source ended")
				return
			}
			s.Process(img)
		}
	}
}

// Process inspects one frame and submits the symbol it holds, if any.
// It reports whether a match was delivered.
func (s *Session) Process(img image.Image) bool {
	s.frames.Add(context.Background(), 1, s.attrs)

	text, err := s.opts.detector.Detect(img)
	if err != nil {
		if !errors.Is(err, qrcode.ErrNotFound) {
			s.logger.Debug("frame detection failed", "error", err)
		}
		return false
	}
	return s.Submit(text)
}

// Submit delivers detected text to the completion, subject to debouncing.
// It reports whether the text was delivered.
func (s *Session) Submit(text string) bool {
	s.mu.Lock()
	id := s.id
	deliver := false
	if s.opts.continuous {
		s.gate.Do(func() { deliver = true })
	} else if !s.finished {
		s.finished = true
		deliver = true
	}
	s.mu.Unlock()

	if !deliver {
		s.suppressed.Add(context.Background(), 1, s.attrs)
		return false
	}

	s.matches.Add(context.Background(), 1, s.attrs)
	if s.opts.vibrate {
		s.opts.feedback.Success()
	}
	s.logger.Debug("code found", "session", id, "length", len(text))
	s.completion(Result{
		Text:      text,
		Type:      QR,
		SessionID: id,
		ScannedAt: time.Now(),
	}, nil)
	return true
}

// Reset clears the finished state and the scan interval so the next match
// is delivered, and starts a new session id.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished = false
	s.gate = &rate.Sometimes{Interval: s.opts.interval}
	s.id = uuid.NewString()
}

// Stop ends the frame loop. It does not wait for it; use Wait.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the frame loop has ended. It returns immediately if
// the session was never started.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
