package services

import (
	"context"
	"fmt"
	"time"

	"github.com/moneytrail/apiserver/internal/cache"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/types"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// RecentLimit is how many records of each kind feed the recent activity list.
	RecentLimit = 5

	incomeWindow  = 60 * 24 * time.Hour
	expenseWindow = 30 * 24 * time.Hour
)

// DashboardService builds the per-user summary from both transaction stores.
type DashboardService struct {
	incomes  TransactionRepository
	expenses TransactionRepository
	cache    cache.DashboardCache
	now      func() time.Time
	logger   *log.Logger
}

func NewDashboardService(incomes, expenses TransactionRepository, dashboards cache.DashboardCache, logger *log.Logger) *DashboardService {
	if dashboards == nil {
		dashboards = cache.Noop{}
	}
	return &DashboardService{
		incomes:  incomes,
		expenses: expenses,
		cache:    dashboards,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentDashboard),
	}
}

// WithClock replaces the clock used for the rolling windows.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// Summary aggregates totals, rolling windows and recent activity for userID.
// Any failed query fails the whole call.
func (s *DashboardService) Summary(ctx context.Context, userID string) (types.DashboardSummary, error) {
	if userID == "" || !s.incomes.ValidID(userID) {
		return types.DashboardSummary{}, ErrInvalidIdentity
	}

	if cached, ok, err := s.cache.Get(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "dashboard cache read failed", log.FieldUserID, userID, log.FieldError, err)
	} else if ok {
		return cached, nil
	}
	// Read before querying so a write landing mid-computation keeps this
	// summary out of the cache.
	gen, genErr := s.cache.Generation(ctx, userID)
	if genErr != nil {
		s.logger.WarnContext(ctx, "dashboard cache generation read failed", log.FieldUserID, userID, log.FieldError, genErr)
	}

	now := s.now()
	var (
		totalIncome, totalExpense float64
		incomeWindowTxs           []types.Transaction
		expenseWindowTxs          []types.Transaction
		recentIncomes             []types.Transaction
		recentExpenses            []types.Transaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totalIncome, err = s.incomes.SumByUser(gctx, userID)
		return wrapQuery("total income", err)
	})
	g.Go(func() (err error) {
		totalExpense, err = s.expenses.SumByUser(gctx, userID)
		return wrapQuery("total expense", err)
	})
	g.Go(func() (err error) {
		incomeWindowTxs, err = s.incomes.ListSince(gctx, userID, now.Add(-incomeWindow))
		return wrapQuery("income window", err)
	})
	g.Go(func() (err error) {
		expenseWindowTxs, err = s.expenses.ListSince(gctx, userID, now.Add(-expenseWindow))
		return wrapQuery("expense window", err)
	})
	g.Go(func() (err error) {
		recentIncomes, err = s.incomes.ListRecent(gctx, userID, RecentLimit)
		return wrapQuery("recent income", err)
	})
	g.Go(func() (err error) {
		recentExpenses, err = s.expenses.ListRecent(gctx, userID, RecentLimit)
		return wrapQuery("recent expense", err)
	})
	if err := g.Wait(); err != nil {
		return types.DashboardSummary{}, err
	}

	summary := types.DashboardSummary{
		TotalBalance: totalIncome - totalExpense,
		TotalIncome:  totalIncome,
		TotalExpense: totalExpense,
		ExpenseLast30Days: types.TransactionWindow{
			Total:        sumAmounts(expenseWindowTxs),
			Transactions: nonNil(tagged(expenseWindowTxs, types.KindExpense)),
		},
		IncomeLast60Days: types.TransactionWindow{
			Total:        sumAmounts(incomeWindowTxs),
			Transactions: nonNil(tagged(incomeWindowTxs, types.KindIncome)),
		},
		RecentTransactions: mergeByDate(
			tagged(recentIncomes, types.KindIncome),
			tagged(recentExpenses, types.KindExpense),
		),
	}

	if genErr == nil {
		if err := s.cache.Set(ctx, userID, gen, summary); err != nil {
			s.logger.WarnContext(ctx, "dashboard cache write failed", log.FieldUserID, userID, log.FieldError, err)
		}
	}
	return summary, nil
}

func wrapQuery(name string, err error) error {
	if err != nil {
		return fmt.Errorf("dashboard %s: %w", name, err)
	}
	return nil
}

func sumAmounts(items []types.Transaction) float64 {
	total := decimal.Zero
	for _, tx := range items {
		total = total.Add(decimal.NewFromFloat(tx.Amount))
	}
	return total.InexactFloat64()
}

func tagged(items []types.Transaction, kind types.Kind) []types.Transaction {
	for i := range items {
		items[i].Kind = kind
	}
	return items
}

// mergeByDate merges two date-descending lists into one. On equal dates the
// income record comes first.
func mergeByDate(incomes, expenses []types.Transaction) []types.Transaction {
	out := make([]types.Transaction, 0, len(incomes)+len(expenses))
	i, j := 0, 0
	for i < len(incomes) && j < len(expenses) {
		if expenses[j].Date.After(incomes[i].Date) {
			out = append(out, expenses[j])
			j++
		} else {
			out = append(out, incomes[i])
			i++
		}
	}
	out = append(out, incomes[i:]...)
	return append(out, expenses[j:]...)
}
