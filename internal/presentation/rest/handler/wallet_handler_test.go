package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ledgerapp "coin-server/internal/application/ledger"
	"coin-server/internal/domain/ledger"
	"coin-server/internal/domain/wallet"
	otelinfra "coin-server/internal/infrastructure/observability/otel"
	restmiddleware "coin-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newWalletHandler(mwr *MockWalletRepository, mer *MockEntryRepository) (*WalletHandler, *otelinfra.Logger) {
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	metrics, _ := otelinfra.NewMetrics("test")
	mtm := new(MockTransactionManager)
	ledgerService := ledgerapp.NewLedgerApplicationService(mwr, mer, mtm, logger, metrics)
	return NewWalletHandler(ledgerService), logger
}

func TestWalletHandler_GetBalance(t *testing.T) {
	tests := []struct {
		name            string
		accountID       string
		setupMock       func(*MockWalletRepository)
		expectedStatus  int
		expectedBalance string
	}{
		{
			name:      "正常系: 残高取得成功",
			accountID: "fan123",
			setupMock: func(mwr *MockWalletRepository) {
				w := wallet.MustNewWallet("fan123", 1000, 1)
				mwr.On("FindByOwnerID", mock.Anything, "fan123").Return(w, nil)
			},
			expectedStatus:  http.StatusOK,
			expectedBalance: "1000",
		},
		{
			name:      "正常系: ウォレット未作成のアカウントは残高0",
			accountID: "newbie",
			setupMock: func(mwr *MockWalletRepository) {
				mwr.On("FindByOwnerID", mock.Anything, "newbie").Return(nil, wallet.ErrWalletNotFound)
			},
			expectedStatus:  http.StatusOK,
			expectedBalance: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			mwr := new(MockWalletRepository)
			mer := new(MockEntryRepository)
			handler, logger := newWalletHandler(mwr, mer)

			tt.setupMock(mwr)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/"+tt.accountID+"/balance", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("account_id")
			c.SetParamValues(tt.accountID)

			middlewareFunc := restmiddleware.ErrorHandlerMiddleware(logger)
			handlerFunc := middlewareFunc(func(c echo.Context) error {
				return handler.GetBalance(c)
			})
			err := handlerFunc(c)
			if err != nil {
				e.HTTPErrorHandler(err, c)
			}
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusOK {
				var response BalanceResponse
				err = json.Unmarshal(rec.Body.Bytes(), &response)
				require.NoError(t, err)
				assert.Equal(t, tt.accountID, response.AccountID)
				assert.Equal(t, tt.expectedBalance, response.Balance)
			}
			mwr.AssertExpectations(t)
		})
	}
}

func TestWalletHandler_GetEntries(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockEntryRepository)
		expectedStatus int
		expectedCount  int
	}{
		{
			name:  "正常系: 履歴取得成功",
			query: "",
			setupMock: func(mer *MockEntryRepository) {
				entries := []*ledger.Entry{
					ledger.MustNewEntry("entry_1", "fan123", 1000, ledger.EntryKindTopup, "pay_1", "stl-evt_1", 0, 1000, ledger.EntryStatusCommitted, nil),
					ledger.MustNewEntry("entry_2", "fan123", -100, ledger.EntryKindTicketPurchase, "tkt_1", "tkt-show_1-fan123", 1000, 900, ledger.EntryStatusCommitted, nil),
				}
				mer.On("FindByAccountID", mock.Anything, "fan123", 50, 0).Return(entries, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:  "正常系: limit/offset指定",
			query: "?limit=10&offset=20",
			setupMock: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "fan123", 10, 20).Return([]*ledger.Entry{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "異常系: limitが数値でない",
			query:          "?limit=abc",
			setupMock:      func(mer *MockEntryRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			mwr := new(MockWalletRepository)
			mer := new(MockEntryRepository)
			handler, logger := newWalletHandler(mwr, mer)

			tt.setupMock(mer)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/fan123/entries"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("account_id")
			c.SetParamValues("fan123")

			middlewareFunc := restmiddleware.ErrorHandlerMiddleware(logger)
			handlerFunc := middlewareFunc(func(c echo.Context) error {
				return handler.GetEntries(c)
			})
			err := handlerFunc(c)
			if err != nil {
				e.HTTPErrorHandler(err, c)
			}
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusOK {
				var response EntriesResponse
				err = json.Unmarshal(rec.Body.Bytes(), &response)
				require.NoError(t, err)
				assert.Len(t, response.Entries, tt.expectedCount)
			}
			mer.AssertExpectations(t)
		})
	}
}
