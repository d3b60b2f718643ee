package cover

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Prober abstracts the minimal existence check used for cover candidates.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// Resolution is the two-arm outcome of cover resolution. Probed reports
// whether the dated candidate validated; when false, URL is the fallback.
// There is no error arm: resolution always yields a usable URL.
type Resolution struct {
	URL    string
	Probed bool
}

// Resolver derives a dated cover URL from a template and probes it once per
// run. Template tokens: {year} (4 digits), {month} and {day} (2 digits,
// zero padded).
type Resolver struct {
	Template string
	Fallback string
	Prober   Prober
	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

// Resolve returns the dated candidate when the probe succeeds and the
// fallback otherwise. The probe is a single attempt: within one run its
// outcome is definitive.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	candidate := r.CandidateURL()
	if candidate == "" {
		return Resolution{URL: r.Fallback}
	}
	if r.Prober == nil {
		log.Warn().Str("url", candidate).Msg("no prober configured; using fallback cover")
		return Resolution{URL: r.Fallback}
	}
	if err := r.Prober.Probe(ctx, candidate); err != nil {
		log.Warn().Err(err).Str("url", candidate).Msg("cover probe failed; using fallback cover")
		return Resolution{URL: r.Fallback}
	}
	return Resolution{URL: candidate, Probed: true}
}

// CandidateURL interpolates today's date into the template. Empty when no
// template is configured.
func (r *Resolver) CandidateURL() string {
	if strings.TrimSpace(r.Template) == "" {
		return ""
	}
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	rep := strings.NewReplacer(
		"{year}", now.Format("2006"),
		"{month}", now.Format("01"),
		"{day}", now.Format("02"),
	)
	return rep.Replace(r.Template)
}
