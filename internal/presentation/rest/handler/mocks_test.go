package handler

import (
	"context"
	"time"

	"coin-server/internal/domain/billing"
	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/settlement"
	"coin-server/internal/domain/show"
	"coin-server/internal/domain/wallet"

	"github.com/stretchr/testify/mock"
)

// MockWalletRepository モックウォレットリポジトリ
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) FindByOwnerID(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

// MockEntryRepository モック台帳エントリリポジトリ
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Save(ctx context.Context, e *ledger.Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEntryRepository) FindByIdempotencyKey(ctx context.Context, idempotencyKey string) (*ledger.Entry, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) FindByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) SumSettlementCredits(ctx context.Context, accountID string, from, to time.Time) (int64, error) {
	args := m.Called(ctx, accountID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntryRepository) SumGiftsByReference(ctx context.Context, referenceID string) (int64, error) {
	args := m.Called(ctx, referenceID)
	return args.Get(0).(int64), args.Error(1)
}

// MockTransactionManager モックトランザクションマネージャー
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	args := m.Called(ctx, fn)
	if fn != nil {
		return fn(ctx)
	}
	return args.Error(0)
}

// MockSessionRepository モック課金セッションリポジトリ
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, s *billing.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*billing.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Session), args.Error(1)
}

func (m *MockSessionRepository) FindActive(ctx context.Context) ([]*billing.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Session), args.Error(1)
}

func (m *MockSessionRepository) AdvanceMinutesBilled(ctx context.Context, sessionID string, minutes int64) error {
	args := m.Called(ctx, sessionID, minutes)
	return args.Error(0)
}

func (m *MockSessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *MockSessionRepository) MarkFinalized(ctx context.Context, sessionID string, endedAt time.Time) (bool, error) {
	args := m.Called(ctx, sessionID, endedAt)
	return args.Bool(0), args.Error(1)
}

// MockEventRepository モック決済イベントリポジトリ
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, e *settlement.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEventRepository) FindByExternalID(ctx context.Context, externalID string) (*settlement.Event, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Event), args.Error(1)
}

func (m *MockEventRepository) Update(ctx context.Context, e *settlement.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEventRepository) FindPending(ctx context.Context, limit int) ([]*settlement.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Event), args.Error(1)
}

func (m *MockEventRepository) FindAccountIDsInWindow(ctx context.Context, from, to time.Time) ([]string, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockShowRepository モックショーリポジトリ
type MockShowRepository struct {
	mock.Mock
}

func (m *MockShowRepository) Create(ctx context.Context, s *show.Show) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockShowRepository) FindByShowID(ctx context.Context, showID string) (*show.Show, error) {
	args := m.Called(ctx, showID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*show.Show), args.Error(1)
}

func (m *MockShowRepository) TransitionToLive(ctx context.Context, showID string, at time.Time) (bool, error) {
	args := m.Called(ctx, showID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockShowRepository) TransitionToEnded(ctx context.Context, showID string, at time.Time, attendeeCount, totalGifts int64) (bool, error) {
	args := m.Called(ctx, showID, at, attendeeCount, totalGifts)
	return args.Bool(0), args.Error(1)
}

func (m *MockShowRepository) UpdateHeartbeat(ctx context.Context, showID string, at time.Time) error {
	args := m.Called(ctx, showID, at)
	return args.Error(0)
}

func (m *MockShowRepository) FindStaleLive(ctx context.Context, cutoff time.Time) ([]*show.Show, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*show.Show), args.Error(1)
}

// MockTicketRepository モックチケットリポジトリ
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Create(ctx context.Context, t *show.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTicketRepository) FindByShowAndHolder(ctx context.Context, showID, holderID string) (*show.Ticket, error) {
	args := m.Called(ctx, showID, holderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*show.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GrantAccess(ctx context.Context, ticketID string) error {
	args := m.Called(ctx, ticketID)
	return args.Error(0)
}

func (m *MockTicketRepository) MarkUsed(ctx context.Context, ticketID string, at time.Time) error {
	args := m.Called(ctx, ticketID, at)
	return args.Error(0)
}

func (m *MockTicketRepository) CountAttendees(ctx context.Context, showID string) (int64, error) {
	args := m.Called(ctx, showID)
	return args.Get(0).(int64), args.Error(1)
}
