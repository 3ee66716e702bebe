// Package feargreed computes the composite fear-and-greed index: a
// weighted blend of a VIX-derived component and an external sentiment
// index, normalized onto a single 0-100 scale and bucketed into a level.
//
// The weighting is not specified by any upstream source; it mirrors the
// portfolio-allocation weighting pattern used elsewhere for composite
// indices (weight the inputs that are actually available, renormalize
// when one is missing, and only fall back to N/A when neither is).
package feargreed

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/cache"
	"github.com/aristath/marketcore/internal/clock"
	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/router"
)

const cacheKey = cache.NamespaceFearGreed + ":composite"

// vixFloor and vixCeiling bound the VIX level mapped onto the 0-100
// fear/greed scale: at or below vixFloor the VIX component reads as
// maximum greed (100), at or above vixCeiling as maximum fear (0).
const (
	vixFloor   = 12.0
	vixCeiling = 40.0
)

// externalWeight and vixWeight are applied when both components are
// available; when only one is present it is used at full weight.
const (
	externalWeight = 0.6
	vixWeight      = 0.4
)

// Level score boundaries, matching the common retail fear-and-greed
// convention (0-24 extreme fear ... 76-100 extreme greed).
const (
	extremeFearMax = 24.0
	fearMax        = 44.0
	neutralMax     = 55.0
	greedMax       = 75.0
)

// Source computes the composite fear-and-greed index.
type Source interface {
	Compute(ctx context.Context) (domain.FearGreed, error)
}

// Calculator is the concrete Source backing the Batch Prewarmer and Scan
// Pipeline. It reads VIX and an external composite index through the
// Provider Router like any other ticker, and caches the blended result
// under its own namespace since neither component ticker's cache entry
// carries the composite weighting.
type Calculator struct {
	router       *router.Router
	fabric       *cache.Fabric
	vixTicker    string
	externalTicker string
	clk          clock.Clock
	log          zerolog.Logger
}

// New constructs a Calculator. vixTicker and externalTicker are the
// router-routable symbols for the VIX level and the external sentiment
// index respectively (either may be empty to disable that component).
func New(r *router.Router, fabric *cache.Fabric, vixTicker, externalTicker string, clk clock.Clock, log zerolog.Logger) *Calculator {
	return &Calculator{
		router:         r,
		fabric:         fabric,
		vixTicker:      vixTicker,
		externalTicker: externalTicker,
		clk:            clk,
		log:            log.With().Str("component", "fear_greed").Logger(),
	}
}

// Compute derives the composite index from the latest VIX and external
// index signals and caches it. A provider miss for either leg degrades
// gracefully rather than failing the whole computation.
func (c *Calculator) Compute(ctx context.Context) (domain.FearGreed, error) {
	fg := domain.FearGreed{ComputedAt: c.clk.Now()}

	if c.vixTicker != "" {
		if out := c.router.Signals(ctx, c.vixTicker); out.Status == providers.StatusOK && out.Value.LastClose != nil {
			v := vixToScore(*out.Value.LastClose)
			fg.VIXComponent = &v
		}
	}
	if c.externalTicker != "" {
		if out := c.router.Signals(ctx, c.externalTicker); out.Status == providers.StatusOK && out.Value.LastClose != nil {
			v := clampScore(*out.Value.LastClose)
			fg.ExternalComponent = &v
		}
	}

	fg.Composite, fg.Level = composite(fg.VIXComponent, fg.ExternalComponent)

	if c.fabric != nil {
		if encoded, err := cache.Encode(fg); err == nil {
			c.fabric.Put(cacheKey, encoded)
		}
	}
	return fg, nil
}

// Cached returns the most recently computed composite without touching
// any provider, for handlers that only need the last known reading.
func (c *Calculator) Cached() (domain.FearGreed, bool) {
	if c.fabric == nil {
		return domain.FearGreed{}, false
	}
	res := c.fabric.Get(cacheKey)
	if res.State != cache.Present {
		return domain.FearGreed{}, false
	}
	var fg domain.FearGreed
	if err := cache.Decode(res.Value, &fg); err != nil {
		return domain.FearGreed{}, false
	}
	return fg, true
}

// vixToScore maps a VIX level onto the 0-100 fear/greed scale: low VIX
// means calm markets (greed), high VIX means fear.
func vixToScore(vix float64) float64 {
	if vix <= vixFloor {
		return 100
	}
	if vix >= vixCeiling {
		return 0
	}
	frac := (vix - vixFloor) / (vixCeiling - vixFloor)
	return 100 * (1 - frac)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func composite(vix, external *float64) (*float64, domain.FearGreedLevel) {
	switch {
	case vix == nil && external == nil:
		return nil, domain.LevelNotAvailable
	case vix == nil:
		score := *external
		return &score, levelOf(score)
	case external == nil:
		score := *vix
		return &score, levelOf(score)
	default:
		score := *external*externalWeight + *vix*vixWeight
		return &score, levelOf(score)
	}
}

func levelOf(score float64) domain.FearGreedLevel {
	switch {
	case score <= extremeFearMax:
		return domain.LevelExtremeFear
	case score <= fearMax:
		return domain.LevelFear
	case score <= neutralMax:
		return domain.LevelNeutral
	case score <= greedMax:
		return domain.LevelGreed
	default:
		return domain.LevelExtremeGreed
	}
}
