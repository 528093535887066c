package fx

import (
	"context"
	"sort"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Service implements FxService over a RateSource.
type Service struct {
	source      interfaces.RateSource
	reference   interfaces.ReferenceService
	resolver    *Resolver
	anchor      string
	ignoreRates bool
	logger      *common.Logger
}

var _ interfaces.FxService = (*Service)(nil)

// NewService creates an FX service. reference may be nil, in which case
// currency codes are not validated before the table lookup.
func NewService(source interfaces.RateSource, reference interfaces.ReferenceService, config common.FXConfig, numeric common.NumericConfig, logger *common.Logger) *Service {
	anchor := config.Anchor
	if anchor == "" {
		anchor = "USD"
	}
	return &Service{
		source:      source,
		reference:   reference,
		resolver:    NewResolver(numeric.RateScale),
		anchor:      anchor,
		ignoreRates: config.IgnoreRates,
		logger:      logger,
	}
}

// GetRates fetches one table for every distinct currency in pairs and
// resolves the pairs against it.
func (s *Service) GetRates(ctx context.Context, asAt time.Time, pairs []models.CurrencyPair) (*models.FxPairResults, error) {
	normalised := make([]models.CurrencyPair, 0, len(pairs))
	symbols := make(map[string]bool)

	for _, p := range pairs {
		pair := models.NewCurrencyPair(p.From, p.To)
		normalised = append(normalised, pair)
		if pair.IsSame() || !pair.IsDefined() {
			continue
		}
		for _, code := range []string{pair.From, pair.To} {
			if s.reference != nil {
				if _, err := s.reference.Currency(code); err != nil {
					return nil, err
				}
			}
			if code != s.anchor {
				symbols[code] = true
			}
		}
	}

	table := &models.RateTable{Anchor: s.anchor, Date: asAt}
	if len(symbols) > 0 {
		codes := make([]string, 0, len(symbols))
		for code := range symbols {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		fetched, err := s.source.GetRates(ctx, asAt, s.anchor, codes)
		if err != nil {
			if !common.IsBusiness(err) && !common.IsSystem(err) {
				err = common.NewSystemError("fx.GetRates", err)
			}
			return nil, err
		}
		table = fetched

		if !table.Date.Equal(asAt) {
			s.logger.Debug().
				Str("requested", asAt.Format("2006-01-02")).
				Str("published", table.Date.Format("2006-01-02")).
				Msg("Rate table date fell back")
		}
	}

	return s.resolver.Compute(asAt, normalised, table)
}
