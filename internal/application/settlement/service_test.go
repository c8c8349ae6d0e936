package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	ledgerapp "coin-server/internal/application/ledger"
	"coin-server/internal/domain/settlement"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
)

// MockEventRepository モック決済イベントリポジトリ
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *settlement.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) FindByExternalID(ctx context.Context, externalID string) (*settlement.Event, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Event), args.Error(1)
}

func (m *MockEventRepository) Update(ctx context.Context, event *settlement.Event) error {
	args := m.Called(ctx, event)
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

// MockLedgerService モック台帳サービス
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Credit(ctx context.Context, req *ledgerapp.CreditRequest) (*ledgerapp.CreditResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.CreditResponse), args.Error(1)
}

func newTestSettlementService(mer *MockEventRepository, mls *MockLedgerService) *SettlementApplicationService {
	tracer := otel.Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("test")
	if err != nil {
		panic(err)
	}
	return NewSettlementApplicationService(mer, mls, 10, "JPY", logger, metrics)
}

func pendingEvent(t *testing.T, externalID string, amountCents int64, currency string) *settlement.Event {
	t.Helper()
	now := time.Now()
	return settlement.ReconstructEvent(
		externalID, "stripe", "fan123", amountCents, currency, "{}",
		settlement.EventStatusPending, 0, nil, nil, now, now,
	)
}

func TestSettlementApplicationService_IngestEvent(t *testing.T) {
	t.Run("正常系: イベントを受信して永続化", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		mer.On("Create", mock.Anything, mock.AnythingOfType("*settlement.Event")).Return(nil)

		svc := newTestSettlementService(mer, mls)
		got, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
			ExternalID:  "evt_1",
			Provider:    "stripe",
			AccountID:   "fan123",
			AmountCents: 1000,
			Currency:    "JPY",
			RawPayload:  "{}",
		})
		require.NoError(t, err)
		assert.Equal(t, "evt_1", got.ExternalID)
		assert.Equal(t, "pending", got.Status)
		assert.False(t, got.Replayed)

		mer.AssertExpectations(t)
	})

	t.Run("正常系: 重複イベントは受信済みとして返す", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		existing := pendingEvent(t, "evt_1", 1000, "JPY")
		existing.MarkApplied()
		mer.On("Create", mock.Anything, mock.AnythingOfType("*settlement.Event")).Return(settlement.ErrDuplicateEvent)
		mer.On("FindByExternalID", mock.Anything, "evt_1").Return(existing, nil)

		svc := newTestSettlementService(mer, mls)
		got, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
			ExternalID:  "evt_1",
			Provider:    "stripe",
			AccountID:   "fan123",
			AmountCents: 1000,
			Currency:    "JPY",
			RawPayload:  "{}",
		})
		require.NoError(t, err)
		assert.True(t, got.Replayed)
		assert.Equal(t, "applied", got.Status)
	})

	t.Run("異常系: 未対応通貨", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)

		svc := newTestSettlementService(mer, mls)
		_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
			ExternalID:  "evt_1",
			Provider:    "stripe",
			AccountID:   "fan123",
			AmountCents: 1000,
			Currency:    "USD",
		})
		assert.ErrorIs(t, err, settlement.ErrUnsupportedCurrency)
		mer.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("異常系: コイン単位に割り切れない金額", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)

		svc := newTestSettlementService(mer, mls)
		_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
			ExternalID:  "evt_1",
			Provider:    "stripe",
			AccountID:   "fan123",
			AmountCents: 1005,
			Currency:    "JPY",
		})
		assert.ErrorIs(t, err, settlement.ErrFractionalCoinAmount)
	})
}

func TestSettlementApplicationService_ProcessEvent(t *testing.T) {
	t.Run("正常系: イベントをコインに換算して入金", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		mer.On("FindByExternalID", mock.Anything, "evt_1").Return(pendingEvent(t, "evt_1", 1000, "JPY"), nil)
		mer.On("Update", mock.Anything, mock.AnythingOfType("*settlement.Event")).Return(nil)
		// 1000セント / 10セント = 100コイン。冪等性キーは外部IDから導出
		mls.On("Credit", mock.Anything, mock.MatchedBy(func(req *ledgerapp.CreditRequest) bool {
			return req.AccountID == "fan123" &&
				req.Amount == 100 &&
				req.Kind == "settlement_credit" &&
				req.IdempotencyKey == "stl-evt_1"
		})).Return(&ledgerapp.CreditResponse{EntryID: "ent_1", BalanceAfter: 100}, nil)

		svc := newTestSettlementService(mer, mls)
		got, err := svc.ProcessEvent(context.Background(), "evt_1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.Coins)
		assert.Equal(t, "ent_1", got.EntryID)

		mer.AssertExpectations(t)
		mls.AssertExpectations(t)
	})

	t.Run("正常系: 適用済みイベントは再入金しない", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		applied := pendingEvent(t, "evt_1", 1000, "JPY")
		applied.MarkApplied()
		mer.On("FindByExternalID", mock.Anything, "evt_1").Return(applied, nil)

		svc := newTestSettlementService(mer, mls)
		got, err := svc.ProcessEvent(context.Background(), "evt_1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.Coins)

		mls.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
	})

	t.Run("異常系: 入金失敗", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		mer.On("FindByExternalID", mock.Anything, "evt_1").Return(pendingEvent(t, "evt_1", 1000, "JPY"), nil)
		mer.On("Update", mock.Anything, mock.AnythingOfType("*settlement.Event")).Return(nil)
		mls.On("Credit", mock.Anything, mock.AnythingOfType("*ledger.CreditRequest")).Return(nil, errors.New("database error"))

		svc := newTestSettlementService(mer, mls)
		_, err := svc.ProcessEvent(context.Background(), "evt_1")
		assert.Error(t, err)
	})

	t.Run("異常系: イベントが存在しない", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		mer.On("FindByExternalID", mock.Anything, "evt_x").Return(nil, settlement.ErrEventNotFound)

		svc := newTestSettlementService(mer, mls)
		_, err := svc.ProcessEvent(context.Background(), "evt_x")
		assert.ErrorIs(t, err, settlement.ErrEventNotFound)
	})
}

func TestWorker_Enqueue(t *testing.T) {
	t.Run("正常系: キュー満杯でfalseを返す", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		tracer := otel.Tracer("test")
		logger := otelinfra.NewLogger(tracer)

		svc := newTestSettlementService(mer, mls)
		worker := NewWorker(svc, mer, 1, 2, 3, logger)

		assert.True(t, worker.Enqueue("evt_1"))
		assert.True(t, worker.Enqueue("evt_2"))
		assert.False(t, worker.Enqueue("evt_3"))
	})
}

func TestWorker_Recover(t *testing.T) {
	t.Run("正常系: 未適用イベントを再投入", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		tracer := otel.Tracer("test")
		logger := otelinfra.NewLogger(tracer)

		mer.On("FindPending", mock.Anything, recoverBatchSize).Return([]*settlement.Event{
			pendingEvent(t, "evt_1", 1000, "JPY"),
			pendingEvent(t, "evt_2", 2000, "JPY"),
		}, nil)

		svc := newTestSettlementService(mer, mls)
		worker := NewWorker(svc, mer, 1, 16, 3, logger)

		err := worker.Recover(context.Background())
		require.NoError(t, err)
		assert.Len(t, worker.queue, 2)

		mer.AssertExpectations(t)
	})
}

func TestWorker_Handle(t *testing.T) {
	t.Run("異常系: 恒久エラーはリトライせずポイズン化", func(t *testing.T) {
		mer := new(MockEventRepository)
		mls := new(MockLedgerService)
		tracer := otel.Tracer("test")
		logger := otelinfra.NewLogger(tracer)

		// 受信後に設定変更などで通貨が未対応になったケース
		event := pendingEvent(t, "evt_1", 1000, "USD")
		mer.On("FindByExternalID", mock.Anything, "evt_1").Return(event, nil)
		mer.On("Update", mock.Anything, mock.MatchedBy(func(e *settlement.Event) bool {
			return e.Status() == settlement.EventStatusFailed
		})).Return(nil)

		svc := newTestSettlementService(mer, mls)
		worker := NewWorker(svc, mer, 1, 16, 3, logger)

		worker.handle("evt_1")

		mer.AssertExpectations(t)
		mls.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
	})
}
