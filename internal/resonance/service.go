package resonance

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
)

// FilingsSource bulk-loads every active investor's current holdings,
// grouped by investor. Satisfied by repository.FilingsRepository.
type FilingsSource interface {
	LatestHoldingsByInvestor(ctx context.Context) (map[string][]domain.FilingHolding, error)
}

// UniverseSource lists the user's own ticker universe (watchlist plus
// holdings). Satisfied by repository.HoldingsRepository.
type UniverseSource interface {
	EvaluationUniverse(ctx context.Context) ([]domain.Holding, error)
}

// Match is one guru's overlap with the user's universe.
type Match struct {
	InvestorID        string
	OverlapCount      int
	OverlappingTicker []string
	Holdings          []domain.FilingHolding
}

// TickerMatch is a resonance hit for a single ticker: which gurus hold
// it and how.
type TickerMatch struct {
	InvestorID string
	Holding    domain.FilingHolding
}

// GreatMind is one ticker the user already holds or watches that at
// least one guru also currently holds.
type GreatMind struct {
	Ticker    string
	GuruCount int
	Gurus     []TickerMatch
}

// Service computes portfolio resonance: the overlap between every
// tracked investor's current filing and the user's own universe.
// Every entry point bulk-loads once and joins in memory — no
// per-investor repository round-trip.
type Service struct {
	filings  FilingsSource
	universe UniverseSource
	log      zerolog.Logger
}

// New constructs a resonance Service.
func New(filings FilingsSource, universe UniverseSource, log zerolog.Logger) *Service {
	return &Service{filings: filings, universe: universe, log: log.With().Str("component", "resonance").Logger()}
}

func (s *Service) userTickers(ctx context.Context) (map[string]bool, error) {
	holdings, err := s.universe.EvaluationUniverse(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		out[h.Ticker] = true
	}
	return out, nil
}

// PortfolioResonance returns, for every investor with at least one
// current filing, the overlap with the user's universe — sorted by
// overlap count descending (most relevant guru first).
func (s *Service) PortfolioResonance(ctx context.Context) ([]Match, error) {
	byInvestor, err := s.filings.LatestHoldingsByInvestor(ctx)
	if err != nil {
		return nil, err
	}
	if len(byInvestor) == 0 {
		s.log.Info().Msg("no active investor filings, skipping resonance computation")
		return nil, nil
	}

	userTickers, err := s.userTickers(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for investorID, holdings := range byInvestor {
		investorTickers := make(map[string]bool, len(holdings))
		byTicker := make(map[string]domain.FilingHolding, len(holdings))
		for _, h := range holdings {
			if h.Ticker == nil {
				continue
			}
			investorTickers[*h.Ticker] = true
			byTicker[*h.Ticker] = h
		}

		overlap := ComputeResonanceMatches(investorTickers, userTickers)
		sort.Strings(overlap)

		matched := make([]domain.FilingHolding, 0, len(overlap))
		for _, t := range overlap {
			matched = append(matched, byTicker[t])
		}

		matches = append(matches, Match{
			InvestorID:        investorID,
			OverlapCount:      len(overlap),
			OverlappingTicker: overlap,
			Holdings:          matched,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].OverlapCount > matches[j].OverlapCount })
	return matches, nil
}

// ResonanceForTicker returns every investor currently holding the given
// ticker, for a single-ticker badge lookup (e.g. on a watchlist row).
func (s *Service) ResonanceForTicker(ctx context.Context, ticker string) ([]TickerMatch, error) {
	byInvestor, err := s.filings.LatestHoldingsByInvestor(ctx)
	if err != nil {
		return nil, err
	}

	var out []TickerMatch
	for investorID, holdings := range byInvestor {
		for _, h := range holdings {
			if h.Ticker != nil && *h.Ticker == ticker {
				out = append(out, TickerMatch{InvestorID: investorID, Holding: h})
			}
		}
	}
	return out, nil
}

// GreatMinds returns every ticker the user holds or watches that at
// least one guru also currently holds, ordered by guru consensus
// (highest guru count first) — the "great minds think alike" view.
func (s *Service) GreatMinds(ctx context.Context) ([]GreatMind, error) {
	matches, err := s.PortfolioResonance(ctx)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	byTicker := map[string][]TickerMatch{}
	for _, m := range matches {
		for _, h := range m.Holdings {
			if h.Ticker == nil {
				continue
			}
			byTicker[*h.Ticker] = append(byTicker[*h.Ticker], TickerMatch{InvestorID: m.InvestorID, Holding: h})
		}
	}

	greatMinds := make([]GreatMind, 0, len(byTicker))
	for ticker, gurus := range byTicker {
		greatMinds = append(greatMinds, GreatMind{Ticker: ticker, GuruCount: len(gurus), Gurus: gurus})
	}
	sort.Slice(greatMinds, func(i, j int) bool { return greatMinds[i].GuruCount > greatMinds[j].GuruCount })
	return greatMinds, nil
}
