package probe

import (
	"context"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/logging"
)

// Public types (alphabetical)

// CodecPerformance is the benchmark score of one candidate.
type CodecPerformance struct {
	Name    string
	CodecID codec.ID
	Backend codec.Backend
	FPS     float64
}

// Observer is notified while the selector walks the candidates. Index is
// zero based and total is the candidate count.
type Observer interface {
	Testing(c codec.Candidate, index, total int)
	Measured(p CodecPerformance, index, total int)
}

// Selector ranks hardware encoders by throughput.
type Selector struct {
	enumerator *Enumerator
	harness    *Harness
	mode       Mode
	observer   Observer
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// Public functions (alphabetical)

// Best scans list once and returns the entry with the highest FPS. On ties
// the earliest entry wins. The second value is false when the list is empty
// or the winner carries no codec identity. A list of real candidates that all
// scored 0 still reports its first entry as found.
func Best(list []CodecPerformance) (CodecPerformance, bool) {
	if len(list) == 0 {
		return CodecPerformance{}, false
	}
	best := list[0]
	for _, p := range list[1:] {
		if best.FPS < p.FPS {
			best = p
		}
	}
	if best.CodecID == codec.IDNone {
		return best, false
	}
	return best, true
}

// NewSelector returns a selector using verified enumeration.
func NewSelector(e *Enumerator, h *Harness, opts ...SelectorOption) *Selector {
	s := &Selector{
		enumerator: e,
		harness:    h,
		mode:       ModeVerified,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithMode selects the enumeration mode used to build the candidate list.
func WithMode(m Mode) SelectorOption {
	return func(s *Selector) {
		s.mode = m
	}
}

// WithObserver registers an observer for progress reporting.
func WithObserver(o Observer) SelectorOption {
	return func(s *Selector) {
		s.observer = o
	}
}

// Detect benchmarks every hardware video encoder candidate for the profile
// and returns the scores in enumeration order. Candidates scoring 0 are kept.
func (s *Selector) Detect(ctx context.Context, profile codec.ContentProfile) []CodecPerformance {
	ctx = logging.WithComponent(ctx, "selector")
	candidates := s.enumerator.ListCandidates(ctx, codec.MediaKindVideo, codec.DirectionEncode, s.mode)
	logging.FromContext(ctx).Debug().
		Int("candidates", len(candidates)).
		Str("mode", s.mode.String()).
		Msg("candidates enumerated")

	out := make([]CodecPerformance, 0, len(candidates))
	for i, c := range candidates {
		if s.observer != nil {
			s.observer.Testing(c, i, len(candidates))
		}
		res := s.harness.Run(ctx, c.Codec.Name, c.Backend, profile)
		perf := CodecPerformance{
			Name:    c.Codec.Name,
			CodecID: c.Codec.ID,
			Backend: c.Backend,
			FPS:     res.FPS,
		}
		if s.observer != nil {
			s.observer.Measured(perf, i, len(candidates))
		}
		out = append(out, perf)
	}
	return out
}

// SelectBest runs Detect and returns the fastest candidate.
func (s *Selector) SelectBest(ctx context.Context, profile codec.ContentProfile) (CodecPerformance, bool) {
	return Best(s.Detect(ctx, profile))
}
