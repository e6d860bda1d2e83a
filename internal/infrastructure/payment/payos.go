package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"libra-pay/internal/domain"
)

// payosClient talks to the hosted payment gateway over HTTP.
type payosClient struct {
	baseURL string
	apiKey  string
	// clockOffset compensates for the gateway emitting zone-less local
	// timestamps. Applied only when expiredAt arrives without a zone;
	// zone-qualified timestamps pass through untouched.
	clockOffset time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewPayOSGateway(baseURL, apiKey string, clockOffset time.Duration, logger *zap.Logger) Gateway {
	return &payosClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		clockOffset: clockOffset,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

type createLinkResponse struct {
	IsSuccess bool `json:"isSuccess"`
	Data      struct {
		PaymentData *struct {
			OrderCode       int64  `json:"orderCode"`
			TransactionCode string `json:"transactionCode"`
			QRCode          string `json:"qrCode"`
			Description     string `json:"description"`
			ExpiredAt       string `json:"expiredAt"`
		} `json:"paymentData"`
		Message string `json:"message"`
	} `json:"data"`
}

func (c *payosClient) CreatePaymentLink(ctx context.Context, req CreateLinkRequest) (*CreateLinkResult, error) {
	body, err := json.Marshal(map[string]any{
		"borrowRequestId": req.BorrowRequestID,
		"amount":          req.Amount,
		"description":     req.Description,
	})
	if err != nil {
		return nil, err
	}

	var resp createLinkResponse
	if err := c.do(ctx, http.MethodPost, "/v2/payment-requests", body, &resp); err != nil {
		return nil, err
	}
	if !resp.IsSuccess {
		return nil, fmt.Errorf("payment: gateway refused payment request")
	}

	if resp.Data.PaymentData == nil {
		if resp.Data.Message == "" {
			return nil, ErrMalformedResponse
		}
		return &CreateLinkResult{Message: resp.Data.Message}, nil
	}

	pd := resp.Data.PaymentData
	expiredAt, err := c.parseExpiredAt(pd.ExpiredAt)
	if err != nil {
		return nil, fmt.Errorf("payment: bad expiredAt %q: %w", pd.ExpiredAt, err)
	}
	return &CreateLinkResult{Link: &PaymentLink{
		OrderCode:       pd.OrderCode,
		TransactionCode: pd.TransactionCode,
		QRCode:          pd.QRCode,
		Description:     pd.Description,
		ExpiredAt:       expiredAt,
	}}, nil
}

type statusResponse struct {
	IsSuccess bool `json:"isSuccess"`
	Data      struct {
		Status domain.TransactionStatus `json:"status"`
	} `json:"data"`
}

func (c *payosClient) CheckStatus(ctx context.Context, orderCode int64) (domain.TransactionStatus, error) {
	var resp statusResponse
	path := fmt.Sprintf("/v2/payment-requests/%d", orderCode)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if !resp.IsSuccess {
		return "", ErrOrderNotFound
	}
	if !resp.Data.Status.Valid() {
		return "", fmt.Errorf("payment: unknown status %q", resp.Data.Status)
	}
	return resp.Data.Status, nil
}

func (c *payosClient) Cancel(ctx context.Context, orderCode int64) error {
	path := fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode)
	return c.do(ctx, http.MethodPost, path, nil, &struct{}{})
}

func (c *payosClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment: gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("payment: gateway returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseExpiredAt accepts RFC3339 as-is; a zone-less timestamp is read as UTC
// and shifted by the configured offset. An empty value means no known expiry.
func (c *payosClient) parseExpiredAt(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC)
	if err != nil {
		return nil, err
	}
	shifted := t.Add(c.clockOffset)
	if c.clockOffset != 0 {
		c.logger.Debug("applied gateway clock offset",
			zap.String("raw", raw),
			zap.Duration("offset", c.clockOffset))
	}
	return &shifted, nil
}
