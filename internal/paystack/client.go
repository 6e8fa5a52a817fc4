package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client реализует интеграцию с Paystack API.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiResponse — общий конверт ответов Paystack.
type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransactionResponse — результат инициализации платежа.
type InitializeTransactionResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// TransactionStatus — состояние платежа на стороне провайдера.
type TransactionStatus struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
	Channel   string `json:"channel"`
}

// Bank — банк из справочника провайдера.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Slug string `json:"slug"`
}

// ResolvedAccount — результат проверки номера счёта.
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// TransferRecipient — получатель перевода, создаётся при привязке счёта.
type TransferRecipient struct {
	RecipientCode string `json:"recipient_code"`
	Active        bool   `json:"active"`
}

// Transfer — состояние исходящего перевода.
type Transfer struct {
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
	Reference    string `json:"reference"`
	Amount       int64  `json:"amount"`
}

// ToKobo переводит сумму в основной валюте в минорные единицы провайдера.
func ToKobo(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

// FromKobo переводит минорные единицы провайдера в основную валюту.
func FromKobo(amount int64) float64 {
	return float64(amount) / 100
}

// InitializeTransaction создаёт платёж на пополнение и возвращает ссылку для оплаты.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount float64, reference string) (*InitializeTransactionResponse, error) {
	payload := map[string]any{
		"email":     email,
		"amount":    ToKobo(amount),
		"reference": reference,
	}

	data, err := c.post(ctx, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var result InitializeTransactionResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("paystack: разбор ответа initialize: %w", err)
	}
	return &result, nil
}

// VerifyTransaction запрашивает фактический статус платежа по reference.
// Единственный источник истины о факте оплаты.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*TransactionStatus, error) {
	data, err := c.get(ctx, "/transaction/verify/"+url.PathEscape(reference))
	if err != nil {
		return nil, err
	}

	var result TransactionStatus
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("paystack: разбор ответа verify: %w", err)
	}
	return &result, nil
}

// ListBanks возвращает справочник банков.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	data, err := c.get(ctx, "/bank?country=nigeria")
	if err != nil {
		return nil, err
	}

	var banks []Bank
	if err := json.Unmarshal(data, &banks); err != nil {
		return nil, fmt.Errorf("paystack: разбор списка банков: %w", err)
	}
	return banks, nil
}

// ResolveAccount проверяет номер счёта и возвращает имя владельца.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	path := fmt.Sprintf("/bank/resolve?account_number=%s&bank_code=%s",
		url.QueryEscape(accountNumber), url.QueryEscape(bankCode))

	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var result ResolvedAccount
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("paystack: разбор ответа resolve: %w", err)
	}
	return &result, nil
}

// CreateTransferRecipient регистрирует получателя перевода у провайдера.
func (c *Client) CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (*TransferRecipient, error) {
	payload := map[string]any{
		"type":           "nuban",
		"name":           name,
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       "NGN",
	}

	data, err := c.post(ctx, "/transferrecipient", payload)
	if err != nil {
		return nil, err
	}

	var result TransferRecipient
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("paystack: разбор ответа recipient: %w", err)
	}
	return &result, nil
}

// InitiateTransfer запускает перевод на привязанный счёт.
func (c *Client) InitiateTransfer(ctx context.Context, recipientCode string, amount float64, reference, reason string) (*Transfer, error) {
	payload := map[string]any{
		"source":    "balance",
		"recipient": recipientCode,
		"amount":    ToKobo(amount),
		"reference": reference,
		"reason":    reason,
	}

	data, err := c.post(ctx, "/transfer", payload)
	if err != nil {
		return nil, err
	}

	var result Transfer
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("paystack: разбор ответа transfer: %w", err)
	}
	return &result, nil
}

// FetchTransfer запрашивает актуальный статус перевода по reference.
func (c *Client) FetchTransfer(ctx context.Context, reference string) (*Transfer, error) {
	data, err := c.get(ctx, "/transfer/verify/"+url.PathEscape(reference))
	if err != nil {
		return nil, err
	}

	var result Transfer
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("paystack: разбор ответа transfer verify: %w", err)
	}
	return &result, nil
}

// post выполняет POST запрос к API провайдера.
func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// get выполняет GET запрос к API провайдера.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack: запрос %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("paystack: разбор ответа %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		return nil, fmt.Errorf("paystack: код ответа %d: %s", resp.StatusCode, envelope.Message)
	}

	return envelope.Data, nil
}
