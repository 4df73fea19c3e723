package scanner

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/qrshare/qrcode"
)

// DefaultScanInterval is the minimum time between two delivered matches in
// continuous mode.
const DefaultScanInterval = 2 * time.Second

// options holds session configuration (unexported)
type options struct {
	codeTypes  []CodeType
	interval   time.Duration
	simulated  string
	vibrate    bool
	feedback   Feedback
	detector   Detector
	continuous bool
	logger     *slog.Logger
}

// Option configures a scan session.
type Option func(*options)

// WithCodeTypes sets the symbologies the session looks for (default QR).
func WithCodeTypes(types ...CodeType) Option {
	return func(o *options) {
		o.codeTypes = types
	}
}

// WithScanInterval sets the minimum time between delivered matches in
// continuous mode. Non-positive values are ignored.
func WithScanInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithSimulatedData makes Start deliver text as the scan result without
// opening the frame source. Useful for tests and environments without a
// camera.
func WithSimulatedData(text string) Option {
	return func(o *options) {
		o.simulated = text
	}
}

// WithVibrateOnSuccess toggles the success feedback (default on).
func WithVibrateOnSuccess(on bool) Option {
	return func(o *options) {
		o.vibrate = on
	}
}

// WithFeedback sets the success feedback hook, e.g. device haptics.
func WithFeedback(f Feedback) Option {
	return func(o *options) {
		o.feedback = f
	}
}

// WithDetector replaces the default QR detector.
func WithDetector(d Detector) Option {
	return func(o *options) {
		if d != nil {
			o.detector = d
		}
	}
}

// WithContinuous keeps delivering matches after the first one, at most one
// per scan interval. By default a session delivers a single match until
// Reset.
func WithContinuous(on bool) Option {
	return func(o *options) {
		o.continuous = on
	}
}

// WithLogger sets the logger for the session.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		codeTypes: []CodeType{QR},
		interval:  DefaultScanInterval,
		vibrate:   true,
		feedback:  FeedbackFunc(func() {}),
		detector:  DetectorFunc(qrcode.NewReader().Decode),
		logger:    slog.Default().With("component", "scanner"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.feedback == nil {
		o.feedback = FeedbackFunc(func() {})
	}
	return o
}
