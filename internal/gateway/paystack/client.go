// Package paystack реализует PaymentGateway поверх REST API Paystack.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/servicehub-backend/internal/gateway"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/metrics"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	DefaultTimeout = 20 * time.Second
)

type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	Currency  string
}

// envelope: общий формат ответов Paystack.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	cfg  Config
	http *resty.Client
	log  *logrus.Entry
}

var _ gateway.PaymentGateway = (*Client)(nil)

// NewClient создаёт клиента. Без SecretKey клиент создаётся, но каждый
// вызов возвращает CONFIG_ERROR.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}

	c := &Client{cfg: cfg, log: logger.Log.WithField("component", "paystack")}
	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "servicehub-backend").
		SetRetryCount(0)
	return c
}

func (c *Client) InitializeCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}
	body := map[string]any{
		"email":        req.Email,
		"amount":       req.AmountMinor,
		"currency":     currency,
		"callback_url": req.CallbackURL,
		"metadata":     req.Metadata,
		"reference":    req.Reference,
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	raw, err := c.do(ctx, "initialize", resty.MethodPost, "/transaction/initialize", body, &data)
	if err != nil {
		return nil, err
	}
	return &gateway.Charge{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
		Raw:              raw,
	}, nil
}

func (c *Client) VerifyCharge(ctx context.Context, reference string) (*gateway.Verification, error) {
	var data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	}
	raw, err := c.do(ctx, "verify", resty.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data)
	if err != nil {
		return nil, err
	}
	return &gateway.Verification{
		Reference:   data.Reference,
		Status:      mapChargeStatus(data.Status),
		AmountMinor: data.Amount,
		Raw:         raw,
	}, nil
}

func (c *Client) CreatePayoutRecipient(ctx context.Context, req gateway.RecipientRequest) (*gateway.Recipient, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}
	body := map[string]any{
		"type":           "nuban",
		"name":           req.Name,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"currency":       currency,
	}

	var data struct {
		RecipientCode string `json:"recipient_code"`
	}
	raw, err := c.do(ctx, "transfer_recipient", resty.MethodPost, "/transferrecipient", body, &data)
	if err != nil {
		return nil, err
	}
	if data.RecipientCode == "" {
		return nil, apperror.Gateway("провайдер не вернул код получателя", raw, nil)
	}
	return &gateway.Recipient{Code: data.RecipientCode, Raw: raw}, nil
}

func (c *Client) InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    req.AmountMinor,
		"recipient": req.RecipientCode,
		"reason":    req.Reason,
		"reference": req.Reference,
	}

	var data struct {
		Reference    string `json:"reference"`
		TransferCode string `json:"transfer_code"`
		Status       string `json:"status"`
	}
	raw, err := c.do(ctx, "transfer", resty.MethodPost, "/transfer", body, &data)
	if err != nil {
		return nil, err
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}
	return &gateway.Transfer{
		Reference:    data.Reference,
		TransferCode: data.TransferCode,
		Status:       data.Status,
		Raw:          raw,
	}, nil
}

func (c *Client) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	body := map[string]any{
		"transaction": req.SourceReference,
		"amount":      req.AmountMinor,
	}

	var data struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	raw, err := c.do(ctx, "refund", resty.MethodPost, "/refund", body, &data)
	if err != nil {
		return nil, err
	}
	return &gateway.Refund{Reference: data.ID.String(), Status: data.Status, Raw: raw}, nil
}

// do выполняет запрос и разбирает конверт. Любой ответ вне 2xx или со
// status=false превращается в GATEWAY_ERROR с исходным телом в деталях.
func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) (raw json.RawMessage, err error) {
	if c.cfg.SecretKey == "" {
		return nil, apperror.New(apperror.ErrCodeConfig, "PAYSTACK_SECRET_KEY не задан")
	}

	started := time.Now()
	defer func() { metrics.ObserveGateway(op, started, err) }()

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.WithError(err).WithField("op", op).Warn("paystack: запрос не выполнен")
		return nil, apperror.Gateway("платёжный провайдер недоступен", nil, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)
	payload := providerPayload(resp.Body())

	if !resp.IsSuccess() || decodeErr != nil || !env.Status {
		message := env.Message
		if message == "" {
			message = resp.Status()
		}
		c.log.WithFields(logrus.Fields{
			"op":     op,
			"status": resp.StatusCode(),
			"resp":   string(resp.Body()),
		}).Warn("paystack: провайдер вернул ошибку")
		return nil, apperror.Gateway(fmt.Sprintf("ошибка платёжного провайдера: %s", message), payload, decodeErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, apperror.Gateway("некорректный ответ платёжного провайдера", payload, err)
		}
	}
	return env.Data, nil
}

func providerPayload(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func mapChargeStatus(status string) gateway.ChargeStatus {
	switch status {
	case "success":
		return gateway.ChargeSuccess
	case "failed", "reversed", "abandoned":
		return gateway.ChargeFailed
	default:
		return gateway.ChargePending
	}
}
