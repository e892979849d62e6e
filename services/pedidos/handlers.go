package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PedidoUseCaseInterface define a interface para o use case
type PedidoUseCaseInterface interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CreateOrderSaga(ctx context.Context, req CreateOrderRequest) (string, string, error)
	ActivateMalinha(ctx context.Context, orderID string) (*Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (*ReleaseResult, error)
	ReturnMalinha(ctx context.Context, orderID string) (*ReleaseResult, error)
	UpdateOrderItems(ctx context.Context, orderID string, req UpdateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	CreateOrderAction(ctx context.Context, req SagaActionRequest) error
	CompleteOrderAction(ctx context.Context, req SagaActionRequest) error
	CancelOrderAction(ctx context.Context, req SagaActionRequest) error
}

// PedidoHandler contém os handlers HTTP
type PedidoHandler struct {
	useCase PedidoUseCaseInterface
	tracer  trace.Tracer
}

// NewPedidoHandler cria uma nova instância de PedidoHandler
func NewPedidoHandler(useCase PedidoUseCaseInterface, tracer trace.Tracer) *PedidoHandler {
	return &PedidoHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// CreateOrder cria um pedido com reserva síncrona (compensação local)
func (h *PedidoHandler) CreateOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_order")
	defer span.End()

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("customer_name", req.CustomerName),
		attribute.String("kind", req.Kind),
		attribute.Int("items", len(req.Items)),
	)

	order, err := h.useCase.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	span.SetAttributes(attribute.String("order_id", order.ID))
	c.JSON(http.StatusCreated, order)
}

// CreateOrderSaga inicia uma transação SAGA para criar uma venda
func (h *PedidoHandler) CreateOrderSaga(c *gin.Context) {
	// Span principal que engloba toda a transação SAGA
	ctx, span := h.tracer.Start(c.Request.Context(), "create_order_saga")
	defer span.End()

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("customer_name", req.CustomerName),
		attribute.Int("items", len(req.Items)),
	)

	// Criar span filho para o processamento do DTM SAGA
	ctxDTM, spanDTM := h.tracer.Start(ctx, "dtm.orchestration")
	spanDTM.SetAttributes(
		attribute.String("component", "dtm-coordinator"),
	)

	orderID, gid, err := h.useCase.CreateOrderSaga(ctxDTM, req)

	if err != nil {
		spanDTM.RecordError(err)
		spanDTM.End()
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	spanDTM.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("dtm_gid", gid),
	)
	spanDTM.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("dtm_gid", gid),
	)

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"saga_gid": gid,
		"message":  "Order SAGA initiated successfully",
	})
}

// GetOrder retorna um pedido com seus itens
func (h *PedidoHandler) GetOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_order")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := h.useCase.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ActivateMalinha reserva o estoque de uma malinha pendente
func (h *PedidoHandler) ActivateMalinha(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "activate_malinha")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := h.useCase.ActivateMalinha(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// CancelOrder cancela um pedido devolvendo o estoque (lote tolerante)
func (h *PedidoHandler) CancelOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "cancel_order")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.useCase.CancelOrder(ctx, orderID, body.Reason)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReturnMalinha devolve uma malinha confirmada (lote tolerante)
func (h *PedidoHandler) ReturnMalinha(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "return_malinha")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	result, err := h.useCase.ReturnMalinha(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdateOrderItems substitui os itens de um pedido confirmado
func (h *PedidoHandler) UpdateOrderItems(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_order_items")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.useCase.UpdateOrderItems(ctx, orderID, req)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// CreateOrderAction é o endpoint SAGA que cria o pedido pendente
func (h *PedidoHandler) CreateOrderAction(c *gin.Context) {
	var req SagaActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := getOrStartSpanFromPayload(c.Request.Context(), "create_order_action", req)
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("trace_id", req.TraceID),
	)

	if err := h.useCase.CreateOrderAction(ctx, req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// CompleteOrderAction é o endpoint SAGA que confirma o pedido
func (h *PedidoHandler) CompleteOrderAction(c *gin.Context) {
	var req SagaActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := getOrStartSpanFromPayload(c.Request.Context(), "complete_order_action", req)
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("trace_id", req.TraceID),
	)

	if err := h.useCase.CompleteOrderAction(ctx, req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// CompensateOrderAction é o endpoint SAGA de compensação (marca cancelado)
func (h *PedidoHandler) CompensateOrderAction(c *gin.Context) {
	var req SagaActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := getOrStartSpanFromPayload(c.Request.Context(), "compensate_order_action", req)
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("trace_id", req.TraceID),
	)

	if err := h.useCase.CancelOrderAction(ctx, req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// HealthCheck verifica a saúde do serviço
func (h *PedidoHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pedidos-service",
	})
}

// writeError traduz os erros de negócio para status HTTP
func writeError(c *gin.Context, err error) {
	var ledgerErr *LedgerError
	var stateErr *StateError
	switch {
	case errors.Is(err, ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &ledgerErr):
		// o serviço de estoque já classificou a falha (409, 422, 404...)
		c.JSON(ledgerErr.StatusCode, gin.H{"error": err.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// getOrStartSpanFromPayload garante que sempre retorna um span filho do tracing atual (ou cria um novo se não houver)
func getOrStartSpanFromPayload(ctx context.Context, operationName string, req SagaActionRequest) (context.Context, trace.Span) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.SpanContext().IsValid() {
		return startSpanFromPayload(ctx, operationName, req.TraceID, req.SpanID)
	}
	tracer := trace.SpanFromContext(ctx).TracerProvider().Tracer("")
	return tracer.Start(ctx, operationName)
}
