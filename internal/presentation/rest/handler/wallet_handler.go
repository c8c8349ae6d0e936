package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	ledgerapp "coin-server/internal/application/ledger"
)

// WalletHandler ウォレット参照ハンドラー
type WalletHandler struct {
	ledgerService *ledgerapp.LedgerApplicationService
}

// NewWalletHandler 新しいWalletHandlerを作成
func NewWalletHandler(ledgerService *ledgerapp.LedgerApplicationService) *WalletHandler {
	return &WalletHandler{
		ledgerService: ledgerService,
	}
}

// GetBalance 残高取得ハンドラー
// @Summary 残高を取得
// @Description 指定されたアカウントのコイン残高を取得します
// @Tags wallet
// @Produce json
// @Param account_id path string true "アカウントID" example(fan123)
// @Success 200 {object} BalanceResponse "残高取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Router /accounts/{account_id}/balance [get]
func (h *WalletHandler) GetBalance(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	resp, err := h.ledgerService.GetBalance(c.Request().Context(), &ledgerapp.GetBalanceRequest{
		AccountID: accountID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BalanceResponse{
		AccountID: resp.AccountID,
		Balance:   strconv.FormatInt(resp.Balance, 10),
	})
}

// GetEntries 台帳履歴取得ハンドラー
// @Summary 台帳履歴を取得
// @Description 指定されたアカウントの台帳エントリ履歴を取得します
// @Tags wallet
// @Produce json
// @Param account_id path string true "アカウントID" example(fan123)
// @Param limit query int false "取得件数" default(50)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {object} EntriesResponse "履歴取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Router /accounts/{account_id}/entries [get]
func (h *WalletHandler) GetEntries(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		offset = parsed
	}

	resp, err := h.ledgerService.GetHistory(c.Request().Context(), &ledgerapp.GetHistoryRequest{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return err
	}

	entries := make([]EntryItem, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		entries = append(entries, EntryItem{
			EntryID:       e.EntryID,
			Amount:        strconv.FormatInt(e.Amount, 10),
			Kind:          e.Kind,
			ReferenceID:   e.ReferenceID,
			BalanceBefore: strconv.FormatInt(e.BalanceBefore, 10),
			BalanceAfter:  strconv.FormatInt(e.BalanceAfter, 10),
			Status:        e.Status,
			CreatedAt:     e.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, EntriesResponse{
		AccountID: accountID,
		Entries:   entries,
	})
}
