package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	showapp "coin-server/internal/application/show"
)

// ShowHandler 有料ショーセッションハンドラー
type ShowHandler struct {
	showService *showapp.ShowApplicationService
}

// NewShowHandler 新しいShowHandlerを作成
func NewShowHandler(showService *showapp.ShowApplicationService) *ShowHandler {
	return &ShowHandler{
		showService: showService,
	}
}

// CreateShow ショー作成ハンドラー
// @Summary ショーを作成
// @Tags show
// @Accept json
// @Produce json
// @Success 201 {object} ShowResponse "作成成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Router /shows [post]
func (h *ShowHandler) CreateShow(c echo.Context) error {
	var req CreateShowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ticketPrice, err := strconv.ParseInt(req.TicketPrice, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket_price")
	}

	resp, err := h.showService.CreateShow(c.Request().Context(), &showapp.CreateShowRequest{
		ShowID:      req.ShowID,
		CreatorID:   req.CreatorID,
		RoomName:    req.RoomName,
		TicketPrice: ticketPrice,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, ShowResponse{
		ShowID: resp.ShowID,
		Status: resp.Status,
	})
}

// PurchaseTicket チケット購入ハンドラー
// @Summary チケットを購入
// @Tags show
// @Accept json
// @Produce json
// @Param show_id path string true "ショーID"
// @Success 200 {object} TicketResponse "購入成功"
// @Failure 409 {object} ErrorResponse "残高不足"
// @Router /shows/{show_id}/tickets [post]
func (h *ShowHandler) PurchaseTicket(c echo.Context) error {
	showID := c.Param("show_id")
	if showID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "show_id is required")
	}

	var req TicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.HolderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "holder_id is required")
	}

	resp, err := h.showService.PurchaseTicket(c.Request().Context(), &showapp.PurchaseTicketRequest{
		ShowID:   showID,
		HolderID: req.HolderID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TicketResponse{
		TicketID: resp.TicketID,
		ShowID:   resp.ShowID,
		HolderID: resp.HolderID,
	})
}

// StartShow ショー開始ハンドラー
// @Summary ショーを開始
// @Tags show
// @Produce json
// @Param show_id path string true "ショーID"
// @Success 200 {object} ShowResponse "開始成功"
// @Failure 409 {object} ErrorResponse "不正な状態遷移"
// @Router /shows/{show_id}/start [post]
func (h *ShowHandler) StartShow(c echo.Context) error {
	showID := c.Param("show_id")
	if showID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "show_id is required")
	}

	resp, err := h.showService.StartShow(c.Request().Context(), showID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ShowResponse{
		ShowID: resp.ShowID,
		Status: resp.Status,
	})
}

// JoinShow 入室ハンドラー
// @Summary ショーに入室
// @Tags show
// @Accept json
// @Produce json
// @Param show_id path string true "ショーID"
// @Success 200 {object} JoinResponse "入室成功"
// @Failure 403 {object} ErrorResponse "入室拒否"
// @Router /shows/{show_id}/join [post]
func (h *ShowHandler) JoinShow(c echo.Context) error {
	showID := c.Param("show_id")
	if showID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "show_id is required")
	}

	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.HolderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "holder_id is required")
	}

	resp, err := h.showService.JoinShow(c.Request().Context(), showID, req.HolderID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, JoinResponse{
		ShowID:   resp.ShowID,
		TicketID: resp.TicketID,
		RoomName: resp.RoomName,
	})
}

// SendGift ギフト送信ハンドラー
// @Summary ギフトを送信
// @Tags show
// @Accept json
// @Produce json
// @Param show_id path string true "ショーID"
// @Success 200 {object} GiftResponse "送信成功"
// @Failure 409 {object} ErrorResponse "残高不足"
// @Router /shows/{show_id}/gifts [post]
func (h *ShowHandler) SendGift(c echo.Context) error {
	showID := c.Param("show_id")
	if showID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "show_id is required")
	}

	var req GiftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SenderID == "" || req.IdempotencyKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sender_id and idempotency_key are required")
	}

	amount, err := strconv.ParseInt(req.Amount, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
	}

	resp, err := h.showService.SendGift(c.Request().Context(), &showapp.SendGiftRequest{
		ShowID:         showID,
		SenderID:       req.SenderID,
		Amount:         amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, GiftResponse{
		ShowID:    resp.ShowID,
		NetAmount: strconv.FormatInt(resp.NetAmount, 10),
	})
}

// Heartbeat ショーハートビートハンドラー
// @Summary ショーの生存を通知
// @Tags show
// @Produce json
// @Param show_id path string true "ショーID"
// @Success 204 "記録成功"
// @Failure 409 {object} ErrorResponse "不正な状態遷移"
// @Router /shows/{show_id}/heartbeat [post]
func (h *ShowHandler) Heartbeat(c echo.Context) error {
	showID := c.Param("show_id")
	if showID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "show_id is required")
	}

	if err := h.showService.Heartbeat(c.Request().Context(), showID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// EndShow ショー終了ハンドラー
// @Summary ショーを終了
// @Tags show
// @Produce json
// @Param show_id path string true "ショーID"
// @Success 200 {object} EndShowResponse "終了成功"
// @Failure 409 {object} ErrorResponse "不正な状態遷移"
// @Router /shows/{show_id}/end [post]
func (h *ShowHandler) EndShow(c echo.Context) error {
	showID := c.Param("show_id")
	if showID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "show_id is required")
	}

	resp, err := h.showService.EndShow(c.Request().Context(), showID, time.Now())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, EndShowResponse{
		ShowID:        resp.ShowID,
		Status:        resp.Status,
		AttendeeCount: resp.AttendeeCount,
		TotalGifts:    strconv.FormatInt(resp.TotalGifts, 10),
	})
}
