package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/portfolio"
)

// PortfolioDocument is the JSON input accepted by the CLI: one portfolio and
// its transactions in trade order.
type PortfolioDocument struct {
	Portfolio    models.Portfolio `json:"portfolio"`
	AsAt         string           `json:"as_at,omitempty"` // YYYY-MM-DD, defaults to today
	Transactions []models.Trn     `json:"transactions"`
}

// ReadPortfolioDocuments decodes one document, or an array of documents.
func ReadPortfolioDocuments(r io.Reader) ([]PortfolioDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var docs []PortfolioDocument
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("failed to parse portfolios: %w", err)
		}
		return docs, nil
	}
	var doc PortfolioDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio: %w", err)
	}
	return []PortfolioDocument{doc}, nil
}

// LoadPortfolioDocuments reads documents from a file, or stdin for "-" or "".
func LoadPortfolioDocuments(path string) ([]PortfolioDocument, error) {
	if path == "" || path == "-" {
		return ReadPortfolioDocuments(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadPortfolioDocuments(f)
}

// ParseAsAt parses a YYYY-MM-DD date, returning now's UTC date when empty.
func ParseAsAt(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, common.BusinessErrorf("app.ParseAsAt", "invalid date %q: %w", s, err)
	}
	return t, nil
}

// PrepareTransactions resolves each transaction's market against reference
// data, assigns ids to transactions without one and defaults the trade
// currency to the market currency. Order is preserved.
func (a *App) PrepareTransactions(trns []models.Trn) ([]models.Trn, error) {
	out := make([]models.Trn, 0, len(trns))
	for i, trn := range trns {
		if trn.ID == "" {
			trn.ID = uuid.NewString()
		}
		market, err := a.ReferenceService.Market(trn.Asset.Market.Code)
		if err != nil {
			return nil, fmt.Errorf("transaction %d (%s): %w", i, trn.ID, err)
		}
		trn.Asset.Market = market
		trn.Asset.Code = strings.ToUpper(strings.TrimSpace(trn.Asset.Code))
		trn.Type = models.ParseTrnType(string(trn.Type))
		if trn.TradeCurrency == "" {
			trn.TradeCurrency = market.Currency
		}
		trn.TradeCurrency = strings.ToUpper(trn.TradeCurrency)
		trn.CashCurrency = strings.ToUpper(trn.CashCurrency)
		out = append(out, trn)
	}
	return out, nil
}

// PreparePortfolio normalises the portfolio's currency codes.
func (a *App) PreparePortfolio(p models.Portfolio) (models.Portfolio, error) {
	for _, code := range []*string{&p.Currency, &p.Base} {
		if *code == "" {
			continue
		}
		resolved, err := a.ReferenceService.Currency(*code)
		if err != nil {
			return p, fmt.Errorf("portfolio %s: %w", p.Code, err)
		}
		*code = resolved
	}
	return p, nil
}

// ValueDocuments prepares and values every document concurrently. Results
// are returned in input order; a document that fails preparation carries
// its error without affecting the others.
func (a *App) ValueDocuments(ctx context.Context, docs []PortfolioDocument, value bool) []DocumentResult {
	results := make([]DocumentResult, len(docs))
	var requests []portfolioRequest
	for i, doc := range docs {
		results[i].Portfolio = doc.Portfolio
		p, err := a.PreparePortfolio(doc.Portfolio)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Portfolio = p
		asAt, err := ParseAsAt(doc.AsAt, time.Now())
		if err != nil {
			results[i].Err = err
			continue
		}
		trns, err := a.PrepareTransactions(doc.Transactions)
		if err != nil {
			results[i].Err = err
			continue
		}
		requests = append(requests, portfolioRequest{index: i, portfolio: p, trns: trns, asAt: asAt})
	}

	a.replay(ctx, requests, value, results)
	return results
}

// DocumentResult is the outcome of one PortfolioDocument.
type DocumentResult struct {
	Portfolio models.Portfolio
	Positions *models.Positions
	Err       error
}

type portfolioRequest struct {
	index     int
	portfolio models.Portfolio
	trns      []models.Trn
	asAt      time.Time
}

// replay builds, and optionally values, each prepared request.
func (a *App) replay(ctx context.Context, requests []portfolioRequest, value bool, results []DocumentResult) {
	if !value {
		for _, req := range requests {
			positions, err := a.PortfolioService.BuildPositions(ctx, req.portfolio, req.trns, req.asAt)
			results[req.index].Positions, results[req.index].Err = positions, err
		}
		return
	}

	batch := make([]portfolio.Request, len(requests))
	for i, req := range requests {
		batch[i] = portfolio.Request{Portfolio: req.portfolio, Transactions: req.trns, AsAt: req.asAt}
	}
	for i, res := range a.PortfolioService.ValuePortfolios(ctx, batch) {
		idx := requests[i].index
		results[idx].Positions, results[idx].Err = res.Positions, res.Err
	}
}
