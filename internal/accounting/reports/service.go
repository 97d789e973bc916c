package reports

import (
	"context"
	"time"
)

// Reader supplies the aggregated data the report builders consume.
type Reader interface {
	AccountBalances(ctx context.Context, from, to time.Time) ([]AccountBalance, error)
	OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenDocument, error)
	OpenBills(ctx context.Context, asOf time.Time) ([]OpenDocument, error)
	ValuationRows(ctx context.Context) ([]ValuationRow, error)
}

// Service renders reports, consulting the cache first for the heavier ones.
type Service struct {
	reader Reader
	cache  *Cache
}

func NewService(reader Reader, cache *Cache) *Service {
	return &Service{reader: reader, cache: cache}
}

func (s *Service) TrialBalance(ctx context.Context, from, to time.Time) (TrialBalance, error) {
	key := s.cache.key("tb", windowKey(from, to))
	var cached TrialBalance
	if s.cache.get(ctx, key, &cached) {
		return cached, nil
	}
	balances, err := s.reader.AccountBalances(ctx, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(balances)
	s.cache.set(ctx, key, tb)
	return tb, nil
}

func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	balances, err := s.reader.AccountBalances(ctx, from, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(balances), nil
}

func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	// Everything up to asOf is in scope, so the window start sits well
	// before any plausible posting date.
	from := time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	balances, err := s.reader.AccountBalances(ctx, from, asOf.AddDate(0, 0, 1))
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(balances), nil
}

func (s *Service) ReceivablesAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	docs, err := s.reader.OpenInvoices(ctx, asOf)
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAging(asOf, docs), nil
}

func (s *Service) PayablesAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	docs, err := s.reader.OpenBills(ctx, asOf)
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAging(asOf, docs), nil
}

func (s *Service) Valuation(ctx context.Context) (InventoryValuation, error) {
	key := s.cache.key("valuation")
	var cached InventoryValuation
	if s.cache.get(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.reader.ValuationRows(ctx)
	if err != nil {
		return InventoryValuation{}, err
	}
	valuation := BuildValuation(rows)
	s.cache.set(ctx, key, valuation)
	return valuation, nil
}

// InvalidateCache drops cached reports after postings mutate the ledger.
func (s *Service) InvalidateCache(ctx context.Context) {
	s.cache.Invalidate(ctx)
}
