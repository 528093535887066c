// Package reference resolves market and currency reference data from config
package reference

import (
	"sort"
	"strings"

	"github.com/Rhymond/go-money"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Service implements ReferenceService over the [markets] config section and
// the ISO 4217 table shipped with go-money.
type Service struct {
	markets map[string]models.Market
	aliases map[string]string // provider alias -> market code, "" when ambiguous
	logger  *common.Logger
}

var _ interfaces.ReferenceService = (*Service)(nil)

// NewService builds the reference tables. Markets with an unknown currency
// are kept but logged, since prices for them convert at a rate of 1.
func NewService(markets map[string]common.MarketConfig, logger *common.Logger) *Service {
	s := &Service{
		markets: make(map[string]models.Market, len(markets)),
		aliases: make(map[string]string),
		logger:  logger,
	}

	for code, mc := range markets {
		code = strings.ToUpper(code)
		m := models.Market{
			Code:     code,
			Currency: strings.ToUpper(mc.Currency),
			Timezone: mc.Timezone,
			Provider: strings.ToUpper(mc.Provider),
			Fallback: strings.ToUpper(mc.Fallback),
			Aliases:  make(map[string]string, len(mc.Aliases)),
		}
		for provider, alias := range mc.Aliases {
			m.Aliases[strings.ToUpper(provider)] = strings.ToUpper(alias)
			if alias == "" || strings.EqualFold(alias, code) {
				continue
			}
			alias = strings.ToUpper(alias)
			if existing, ok := s.aliases[alias]; ok && existing != code {
				s.aliases[alias] = ""
				continue
			}
			s.aliases[alias] = code
		}
		if m.Currency != "" && money.GetCurrency(m.Currency) == nil {
			logger.Warn().Str("market", code).Str("currency", m.Currency).Msg("Market currency is not a known ISO code")
		}
		s.markets[code] = m
	}

	return s
}

// Market resolves a market code, or an unambiguous provider alias such as
// "AU" for ASX.
func (s *Service) Market(code string) (models.Market, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if m, ok := s.markets[code]; ok {
		return m, nil
	}
	if target := s.aliases[code]; target != "" {
		return s.markets[target], nil
	}
	return models.Market{}, common.BusinessErrorf("reference.Market", "%q: %w", code, common.ErrUnknownMarket)
}

// Currency normalises an ISO 4217 code.
func (s *Service) Currency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	cur := money.GetCurrency(code)
	if code == "" || cur == nil {
		return "", common.BusinessErrorf("reference.Currency", "%q: %w", code, common.ErrUnknownCurrency)
	}
	return cur.Code, nil
}

// Markets returns all markets ordered by code.
func (s *Service) Markets() []models.Market {
	out := make([]models.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
