// Package portfolio replays a portfolio's transactions into valued positions
package portfolio

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// maxConcurrentPortfolios bounds ValuePortfolios fan-out.
const maxConcurrentPortfolios = 8

// Service implements PortfolioService. It holds no per-request state: every
// call builds its own Positions, so independent portfolios may be replayed
// concurrently.
type Service struct {
	fx          interfaces.FxService
	accumulator interfaces.AccumulatorService
	valuation   interfaces.ValuationService
	logger      *common.Logger
}

var _ interfaces.PortfolioService = (*Service)(nil)

// NewService creates a new portfolio service
func NewService(fx interfaces.FxService, accumulator interfaces.AccumulatorService, valuation interfaces.ValuationService, logger *common.Logger) *Service {
	return &Service{
		fx:          fx,
		accumulator: accumulator,
		valuation:   valuation,
		logger:      logger,
	}
}

// BuildPositions replays trns in the supplied order. Transactions dated
// after asAt are skipped; a zero asAt replays everything. Any error aborts
// the replay and no partial Positions is returned.
func (s *Service) BuildPositions(ctx context.Context, portfolio models.Portfolio, trns []models.Trn, asAt time.Time) (*models.Positions, error) {
	positions := models.NewPositions(portfolio, asAt)
	cutoff := endOfDay(asAt)

	applied := 0
	for _, trn := range trns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !asAt.IsZero() && trn.TradeDate.After(cutoff) {
			continue
		}

		bound, err := s.fx.SetRates(ctx, portfolio, trn)
		if err != nil {
			s.logger.Warn().Err(err).Str("portfolio", portfolio.Code).Str("trn", trn.ID).Msg("Rate binding failed")
			return nil, err
		}

		position := positions.Get(bound.Asset)
		if _, err := s.accumulator.Accumulate(&bound, portfolio, position); err != nil {
			s.logger.Warn().Err(err).Str("portfolio", portfolio.Code).Str("trn", trn.ID).Msg("Accumulation aborted")
			return nil, err
		}
		applied++
	}

	s.logger.Info().
		Str("portfolio", portfolio.Code).
		Int("transactions", applied).
		Int("positions", len(positions.Positions)).
		Msg("Positions built")

	return positions, nil
}

// ValuePositions builds positions as at asAt and values them.
func (s *Service) ValuePositions(ctx context.Context, portfolio models.Portfolio, trns []models.Trn, asAt time.Time) (*models.Positions, error) {
	if asAt.IsZero() {
		asAt = time.Now().UTC()
	}
	positions, err := s.BuildPositions(ctx, portfolio, trns, asAt)
	if err != nil {
		return nil, err
	}
	return s.valuation.Value(ctx, positions)
}

// Request is one portfolio's replay input for ValuePortfolios.
type Request struct {
	Portfolio    models.Portfolio
	Transactions []models.Trn
	AsAt         time.Time
}

// Result pairs a request with its outcome; exactly one field is set.
type Result struct {
	Positions *models.Positions
	Err       error
}

// ValuePortfolios values independent portfolios concurrently. A failure in
// one portfolio does not affect the others. Results are in request order.
func (s *Service) ValuePortfolios(ctx context.Context, requests []Request) []Result {
	results := make([]Result, len(requests))

	var g errgroup.Group
	g.SetLimit(maxConcurrentPortfolios)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			positions, err := s.ValuePositions(ctx, req.Portfolio, req.Transactions, req.AsAt)
			results[i] = Result{Positions: positions, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, t.Location())
}
