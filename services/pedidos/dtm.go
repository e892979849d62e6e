package main

import (
	"context"
	"fmt"
	"log"

	"github.com/dtm-labs/client/dtmcli"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SagaOrchestrator abstrai as operações SAGA do DTM
type SagaOrchestrator interface {
	CreateOrderSaga(ctx context.Context, req CreateOrderRequest) (string, string, error)
}

// DTMSagaOrchestrator implementa SagaOrchestrator usando DTM
type DTMSagaOrchestrator struct{}

// NewDTMSagaOrchestrator cria uma nova instância do orquestrador SAGA
func NewDTMSagaOrchestrator() *DTMSagaOrchestrator {
	return &DTMSagaOrchestrator{}
}

// estoqueAdjustPayload é o corpo aceito pelo serviço de estoque em /reserve e /restore
type estoqueAdjustPayload struct {
	ProductID    int    `json:"product_id"`
	Quantity     int    `json:"quantity"`
	Color        string `json:"color"`
	Size         string `json:"size"`
	MovementType string `json:"movement_type,omitempty"`
	Notes        string `json:"notes,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
}

// CreateOrderSaga orquestra a venda: um branch cria o pedido, um branch por item
// reserva o estoque (compensação: devolução), e o último confirma o pedido
func (so *DTMSagaOrchestrator) CreateOrderSaga(ctx context.Context, req CreateOrderRequest) (string, string, error) {
	orderID := uuid.New().String()

	kind := req.Kind
	if kind == "" {
		kind = OrderKindVenda
	}

	// Extract trace context from the incoming context
	var traceID, spanID string
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		spanID = span.SpanContext().SpanID().String()
	}

	defer func() {
		if r := recover(); r != nil {
		}
	}()
	gid := dtmcli.MustGenGid(getEnv("DTM_SERVER", "http://dtm:36789/api/dtmsvr"))

	log.Printf("🚀 Starting SAGA | TraceID: %s | GID: %s | OrderID: %s | Itens: %d",
		traceID, gid, orderID, len(req.Items))

	serviceURL := getEnv("SERVICE_URL", "http://pedidos-service:8082")
	estoqueURL := getEnv("ESTOQUE_SERVICE_URL", "http://estoque-service:8081")

	actionReq := &SagaActionRequest{
		OrderID:      orderID,
		CustomerName: req.CustomerName,
		Kind:         kind,
		Items:        req.Items,
		TraceID:      traceID,
		SpanID:       spanID,
	}

	saga := dtmcli.NewSaga(getEnv("DTM_SERVER", "http://dtm:36789/api/dtmsvr"), gid).
		Add(
			serviceURL+"/api/pedidos/create",
			serviceURL+"/api/pedidos/compensate",
			actionReq,
		)

	for _, item := range req.Items {
		saga = saga.Add(
			estoqueURL+"/api/estoque/reserve",
			estoqueURL+"/api/estoque/restore",
			&estoqueAdjustPayload{
				ProductID:    item.ProductID,
				Quantity:     item.Quantity,
				Color:        item.SelectedColor,
				Size:         item.SelectedSize,
				MovementType: MovementTypeForKind(kind),
				Notes:        fmt.Sprintf("pedido %s (saga %s)", orderID, gid),
				TraceID:      traceID,
				SpanID:       spanID,
			},
		)
	}

	saga = saga.Add(
		serviceURL+"/api/pedidos/complete",
		"",
		actionReq,
	)

	_, submitSpan := createSagaSpan(ctx, "submit", gid)
	defer submitSpan.End()

	err := saga.Submit()

	if err != nil {
		submitSpan.RecordError(err)
		log.Printf("❌ SAGA failed: %v", err)
		return orderID, gid, fmt.Errorf("failed to process order: %w", err)
	}

	log.Printf("✅ SAGA submitted successfully - GID: %s, OrderID: %s", gid, orderID)

	return orderID, gid, nil
}

// createSagaSpan cria um span específico para operações SAGA do DTM
func createSagaSpan(ctx context.Context, operationName string, gid string) (context.Context, trace.Span) {
	tracer := otel.Tracer("dtm-saga")
	ctx, span := tracer.Start(ctx, "dtm."+operationName)

	span.SetAttributes(
		attribute.String("dtm.gid", gid),
		attribute.String("dtm.operation", operationName),
		attribute.String("component", "dtm-coordinator"),
	)

	return ctx, span
}
