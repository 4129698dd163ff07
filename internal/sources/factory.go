package sources

import (
	"fmt"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/database"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
)

// Source kinds accepted by FromConfig
const (
	KindMock   = "mock"
	KindGoogle = "google"
	KindLocal  = "local"
)

// Options selects and configures the sources
type Options struct {
	Primary         string
	EnableFallback  bool
	Google          GoogleConfig
	MockPerCategory int
}

// Deps are the shared components sources are built on. DB may be nil when the
// local source is not used.
type Deps struct {
	DB      *database.DB
	Pool    *resilience.ConnectionPool
	Health  *resilience.DegradationManager
	Logger  *monitoring.Logger
	Metrics *monitoring.Metrics
}

// Chain is the built fallback chain plus direct handles on the concrete sources
type Chain struct {
	*Fallback
	Mock   *MockSource
	Google *GoogleSource
	Local  *LocalSource
}

// FromConfig builds the primary source followed, when fallback is enabled, by the
// other usable sources. Every source is registered with the degradation manager.
func FromConfig(opts Options, deps Deps) (*Chain, error) {
	if deps.Logger == nil {
		deps.Logger = monitoring.NewLogger()
	}
	if deps.Health == nil {
		deps.Health = resilience.DefaultManager()
	}

	chain := &Chain{Mock: NewMockSource(opts.MockPerCategory)}
	if opts.Google.OAuth.Configured() {
		chain.Google = NewGoogleSource(opts.Google, deps.Pool, deps.Metrics, deps.Logger)
	}
	if deps.DB != nil {
		chain.Local = NewLocalSource(deps.DB)
	}

	var order []PhotoSource
	switch opts.Primary {
	case KindMock, "":
		order = chain.ordered(KindMock, KindGoogle, KindLocal)
	case KindGoogle:
		if chain.Google == nil {
			return nil, errors.NewConfigurationError("PHOTO_SOURCE=google requires GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN", nil)
		}
		order = chain.ordered(KindGoogle, KindLocal, KindMock)
	case KindLocal:
		if chain.Local == nil {
			return nil, errors.NewConfigurationError("PHOTO_SOURCE=local requires a database", nil)
		}
		order = chain.ordered(KindLocal, KindGoogle, KindMock)
	default:
		return nil, errors.NewConfigurationError(fmt.Sprintf("unknown photo source %q (expected mock, google or local)", opts.Primary), nil)
	}

	if !opts.EnableFallback {
		order = order[:1]
	}

	for _, s := range order {
		var check resilience.HealthCheckFunc
		switch src := s.(type) {
		case *GoogleSource:
			check = src.HealthCheck
		case *LocalSource:
			check = src.HealthCheck
		}
		deps.Health.RegisterService(s.ServiceName(), check)
	}

	chain.Fallback = NewFallback(order, deps.Health, deps.Logger, deps.Metrics)

	names := make([]string, 0, len(order))
	for _, s := range order {
		names = append(names, s.Name())
	}
	deps.Logger.Info("Photo sources initialized", "primary", order[0].Name(), "chain", names)
	return chain, nil
}

// ordered lists the configured sources of the given kinds. Unset sources are
// skipped so no nil pointer ends up inside a non-nil interface.
func (c *Chain) ordered(kinds ...string) []PhotoSource {
	out := make([]PhotoSource, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case KindMock:
			out = append(out, c.Mock)
		case KindGoogle:
			if c.Google != nil {
				out = append(out, c.Google)
			}
		case KindLocal:
			if c.Local != nil {
				out = append(out, c.Local)
			}
		}
	}
	return out
}
