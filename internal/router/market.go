package router

import (
	"strings"

	"github.com/aristath/marketcore/internal/domain"
)

// InferMarket derives a ticker's market from its suffix. Tickers with no
// recognized suffix are treated as US.
func InferMarket(ticker string) domain.Market {
	switch {
	case strings.HasSuffix(ticker, ".T"):
		return domain.MarketJP
	case strings.HasSuffix(ticker, ".TW"):
		return domain.MarketTW
	case strings.HasSuffix(ticker, ".HK"):
		return domain.MarketHK
	default:
		return domain.MarketUS
	}
}
