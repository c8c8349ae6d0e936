package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client 決済プロバイダの照会APIクライアント
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

// NewClient 新しいClientを作成
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer("provider-client"),
	}
}

type settlementTotalResponse struct {
	AccountID  string `json:"account_id"`
	TotalCoins int64  `json:"total_coins"`
}

// GetSettlementTotal 指定期間にプロバイダが記録した決済合計（コイン換算）を取得
func (c *Client) GetSettlementTotal(ctx context.Context, accountID string, from, to time.Time) (int64, error) {
	ctx, span := c.tracer.Start(ctx, "ProviderClient.GetSettlementTotal")
	defer span.End()

	span.SetAttributes(
		attribute.String("provider.account_id", accountID),
		attribute.String("provider.from", from.Format(time.RFC3339)),
		attribute.String("provider.to", to.Format(time.RFC3339)),
	)

	endpoint := fmt.Sprintf("%s/v1/settlements/total", c.baseURL)
	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("from", from.Format(time.RFC3339))
	params.Set("to", to.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("provider.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("provider returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, err
	}

	var body settlementTotalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to decode provider response: %w", err)
	}

	span.SetAttributes(attribute.Int64("provider.total_coins", body.TotalCoins))
	span.SetStatus(otelcodes.Ok, "settlement total fetched")
	return body.TotalCoins, nil
}
