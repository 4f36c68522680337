package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/moneytrail/apiserver/internal/cache"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/store"
	"github.com/moneytrail/apiserver/types"
	"github.com/shopspring/decimal"
)

// TransactionRepository defines persistence operations for one kind of transaction.
type TransactionRepository interface {
	// ValidID reports whether id is a well-formed reference for the backend.
	ValidID(id string) bool
	Create(ctx context.Context, tx types.Transaction) (types.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]types.Transaction, error)
	ListSince(ctx context.Context, userID string, since time.Time) ([]types.Transaction, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]types.Transaction, error)
	SumByUser(ctx context.Context, userID string) (float64, error)
	DeleteOwned(ctx context.Context, userID, id string) error
}

// TransactionInput is a record as submitted by the client.
type TransactionInput struct {
	Label  string
	Icon   string
	Amount *decimal.Decimal
	Date   string
}

// TransactionService encapsulates income or expense use-cases for one kind.
type TransactionService struct {
	kind   types.Kind
	repo   TransactionRepository
	cache  cache.DashboardCache
	logger *log.Logger
}

func NewTransactionService(kind types.Kind, repo TransactionRepository, dashboards cache.DashboardCache, logger *log.Logger) *TransactionService {
	if dashboards == nil {
		dashboards = cache.Noop{}
	}
	return &TransactionService{
		kind:   kind,
		repo:   repo,
		cache:  dashboards,
		logger: logger.WithComponent(log.ComponentLedger).With(log.FieldKind, string(kind)),
	}
}

// Kind returns the kind of record this service manages.
func (s *TransactionService) Kind() types.Kind {
	return s.kind
}

func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (types.Transaction, error) {
	if !s.repo.ValidID(userID) {
		return types.Transaction{}, ErrInvalidIdentity
	}

	label := strings.TrimSpace(in.Label)
	if label == "" || in.Amount == nil || strings.TrimSpace(in.Date) == "" {
		return types.Transaction{}, validationf("all fields are required")
	}
	if in.Amount.IsNegative() {
		return types.Transaction{}, validationf("amount must be a non-negative number")
	}
	amount := in.Amount.InexactFloat64()
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return types.Transaction{}, validationf("amount must be a finite number")
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return types.Transaction{}, err
	}

	tx, err := s.repo.Create(ctx, types.Transaction{
		UserID: userID,
		Kind:   s.kind,
		Label:  label,
		Icon:   strings.TrimSpace(in.Icon),
		Amount: amount,
		Date:   date,
	})
	if err != nil {
		return types.Transaction{}, fmt.Errorf("create %s: %w", s.kind, err)
	}
	s.invalidate(ctx, userID)

	s.logger.DebugContext(ctx, "transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, userID,
		log.FieldRecordID, tx.ID,
	)
	return tx, nil
}

// List returns every record the user owns, newest first.
func (s *TransactionService) List(ctx context.Context, userID string) ([]types.Transaction, error) {
	if !s.repo.ValidID(userID) {
		return nil, ErrInvalidIdentity
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind, err)
	}
	return nonNil(items), nil
}

// Delete removes a record owned by the user. Records owned by someone else
// are reported as not found.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if !s.repo.ValidID(userID) {
		return ErrInvalidIdentity
	}
	if !s.repo.ValidID(id) {
		return validationf("invalid %s id", s.kind)
	}

	err := s.repo.DeleteOwned(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(fmt.Sprintf("%s not found", s.kind))
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.kind, err)
	}
	s.invalidate(ctx, userID)

	s.logger.DebugContext(ctx, "transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldUserID, userID,
		log.FieldRecordID, id,
	)
	return nil
}

// Export renders every record the user owns into a spreadsheet.
func (s *TransactionService) Export(ctx context.Context, userID string) (Export, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return Export{}, err
	}
	data, err := buildWorkbook(s.kind, items)
	if err != nil {
		return Export{}, fmt.Errorf("export %s: %w", s.kind, err)
	}
	return Export{
		Filename:    fmt.Sprintf("%s_details.xlsx", s.kind),
		ContentType: XLSXContentType,
		Data:        data,
	}, nil
}

func (s *TransactionService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate dashboard cache", log.FieldUserID, userID, log.FieldError, err)
	}
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, validationf("invalid date %q: use YYYY-MM-DD or RFC 3339", value)
}

func nonNil(items []types.Transaction) []types.Transaction {
	if items == nil {
		return []types.Transaction{}
	}
	return items
}
