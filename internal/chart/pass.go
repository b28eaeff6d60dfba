package chart

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/visualiza/backend/internal/models"
)

// FailurePolicy decides what a failing chart does to the rest of its pass.
type FailurePolicy string

const (
	// Isolate gives every chart its own failure boundary.
	Isolate FailurePolicy = "isolate"
	// AbortOnFirst stops the pass at the first failing chart and reports
	// one combined error. Later charts are not rendered.
	AbortOnFirst FailurePolicy = "abort_on_first"
)

// ParseFailurePolicy accepts "isolate" and "abort_on_first" (or "abort").
// Empty means Isolate.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "isolate":
		return Isolate, nil
	case "abort_on_first", "abort-on-first", "abort":
		return AbortOnFirst, nil
	}
	return "", configErr("", "policy", "unknown failure policy %q", s)
}

func (p *FailurePolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseFailurePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Outcome is the result of one chart of a pass.
type Outcome struct {
	Kind    Kind       `json:"kind"`
	Call    RenderCall `json:"call,omitempty"`
	Figure  *Figure    `json:"figure,omitempty"`
	Err     error      `json:"-"`
	Skipped bool       `json:"skipped,omitempty"`
}

// Failed reports whether the chart was attempted and failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// PassResult holds one outcome per requested kind in canonical order.
// Err is set only when an AbortOnFirst pass stopped early.
type PassResult struct {
	Outcomes []Outcome
	Err      error
}

// Failures returns the outcomes that failed.
func (r *PassResult) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// Order sorts requests into canonical kind order. Each kind may be
// requested once.
func Order(reqs []Request) ([]Request, error) {
	out := make([]Request, len(reqs))
	copy(out, reqs)
	seen := make(map[Kind]bool, len(out))
	for _, r := range out {
		if r.Kind.rank() < 0 {
			return nil, configErr(r.Kind, "kind", "unknown chart kind")
		}
		if seen[r.Kind] {
			return nil, configErr(r.Kind, "kind", "selected more than once")
		}
		seen[r.Kind] = true
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind.rank() < out[j].Kind.rank()
	})
	return out, nil
}

// Pass resolves and draws every request against table. The request set
// itself is checked first; an invalid set yields an error and no outcomes.
func (r *Resolver) Pass(table *models.Table, reqs []Request, policy FailurePolicy) (*PassResult, error) {
	ordered, err := Order(reqs)
	if err != nil {
		return nil, err
	}
	if policy == "" {
		policy = Isolate
	}

	log := slog.Default().With("component", "chart")
	result := &PassResult{Outcomes: make([]Outcome, 0, len(ordered))}

	for i, req := range ordered {
		out := r.renderOne(table, req)
		result.Outcomes = append(result.Outcomes, out)
		if !out.Failed() {
			continue
		}

		log.Warn("chart failed", "kind", req.Kind, "policy", policy, "error", out.Err)
		if policy == AbortOnFirst {
			passErr := &PassError{Kind: req.Kind, Cause: out.Err}
			for _, rest := range ordered[i+1:] {
				result.Outcomes = append(result.Outcomes, Outcome{Kind: rest.Kind, Skipped: true})
				passErr.Skipped = append(passErr.Skipped, rest.Kind)
			}
			result.Err = passErr
			break
		}
	}
	return result, nil
}

// renderOne is the failure boundary of a single chart.
func (r *Resolver) renderOne(table *models.Table, req Request) (out Outcome) {
	out.Kind = req.Kind
	defer func() {
		if p := recover(); p != nil {
			out.Call, out.Figure = nil, nil
			out.Err = fmt.Errorf("%s: internal error: %v", req.Kind, p)
		}
	}()

	call, err := r.Resolve(table, req)
	if err != nil {
		out.Err = err
		return out
	}
	fig, err := BuildFigure(table, call)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", req.Kind, err)
		return out
	}
	out.Call = call
	out.Figure = fig
	return out
}
