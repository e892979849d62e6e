package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// LedgerItem é uma linha de ajuste enviada ao ledger de estoque
type LedgerItem struct {
	ProductID    int    `json:"product_id"`
	Quantity     int    `json:"quantity"`
	Color        string `json:"color"`
	Size         string `json:"size"`
	MovementType string `json:"movement_type,omitempty"`
	Notes        string `json:"notes,omitempty"`
	// Manual trace context propagation
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// Ledger abstrai o serviço de estoque para o orquestrador de pedidos
type Ledger interface {
	Reserve(ctx context.Context, item LedgerItem) error
	Restore(ctx context.Context, item LedgerItem) error
}

// LedgerError carrega o status HTTP e a mensagem devolvidos pelo ledger
type LedgerError struct {
	StatusCode int
	Message    string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger error (%d): %s", e.StatusCode, e.Message)
}

// IsInsufficientStock indica que a reserva falhou por falta de saldo
func (e *LedgerError) IsInsufficientStock() bool {
	return e.StatusCode == http.StatusConflict
}

// HTTPLedger implementa Ledger chamando o estoque-service via HTTP
type HTTPLedger struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPLedger cria uma nova instância de HTTPLedger
func NewHTTPLedger(baseURL string) *HTTPLedger {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(0) // o ledger não é re-tentado: a decisão é do orquestrador

	return &HTTPLedger{
		client:  client,
		baseURL: baseURL,
	}
}

// Reserve consome estoque de uma célula
func (l *HTTPLedger) Reserve(ctx context.Context, item LedgerItem) error {
	return l.post(ctx, "/api/estoque/reserve", item)
}

// Restore devolve estoque a uma célula
func (l *HTTPLedger) Restore(ctx context.Context, item LedgerItem) error {
	return l.post(ctx, "/api/estoque/restore", item)
}

func (l *HTTPLedger) post(ctx context.Context, path string, item LedgerItem) error {
	resp, err := l.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(item).
		Post(l.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to reach estoque service: %w", err)
	}

	if resp.IsSuccess() {
		return nil
	}

	message := resp.String()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		message = body.Error
	}

	return &LedgerError{StatusCode: resp.StatusCode(), Message: message}
}
