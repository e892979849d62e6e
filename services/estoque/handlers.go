package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EstoqueHandler contém os handlers HTTP do ledger
type EstoqueHandler struct {
	useCase *EstoqueUseCase
	tracer  trace.Tracer
}

// NewEstoqueHandler cria uma nova instância de EstoqueHandler
func NewEstoqueHandler(useCase *EstoqueUseCase, tracer trace.Tracer) *EstoqueHandler {
	return &EstoqueHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// Reserve é o endpoint que consome estoque (pedido/venda)
func (h *EstoqueHandler) Reserve(c *gin.Context) {
	h.adjust(c, DirectionReserve, "reserve_stock")
}

// Restore é o endpoint que devolve estoque (edição, cancelamento ou devolução)
func (h *EstoqueHandler) Restore(c *gin.Context) {
	h.adjust(c, DirectionRestore, "restore_stock")
}

func (h *EstoqueHandler) adjust(c *gin.Context, direction, operationName string) {
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := getOrStartSpanFromPayload(c.Request.Context(), operationName, req)
	defer span.End()

	span.SetAttributes(
		attribute.Int("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
		attribute.String("color", req.Color),
		attribute.String("size", req.Size),
		attribute.String("trace_id", req.TraceID),
	)

	snapshot, err := h.useCase.AdjustStock(ctx, req, direction)
	if err != nil {
		log.Printf("ℹ️ [ESTOQUE] FAILED for ProductID=%d : %s", req.ProductID, err)
		span.RecordError(err)
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "success", "product": snapshot})
}

// GetProduct devolve o snapshot aninhado de variantes do produto
func (h *EstoqueHandler) GetProduct(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "get_product_snapshot")
	defer span.End()
	span.SetAttributes(attribute.Int("product_id", productID))

	snapshot, err := h.useCase.GetProductSnapshot(ctx, productID)
	if err != nil {
		span.RecordError(err)
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// ListMovements devolve a trilha de auditoria, da mais recente para a mais antiga
func (h *EstoqueHandler) ListMovements(c *gin.Context) {
	filters := MovementFilters{
		MovementType: c.Query("tipo"),
	}
	if raw := c.Query("product_id"); raw != "" {
		productID, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		filters.ProductID = productID
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filters.Limit = limit
	}

	movements, err := h.useCase.ListMovements(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list movements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// HealthCheck é o endpoint de health check
func (h *EstoqueHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// writeError traduz os erros do ledger para códigos HTTP:
// produto ausente 404, cor/tamanho não resolvidos 422 (com as alternativas
// disponíveis no corpo), estoque insuficiente 409, o resto 500
func (h *EstoqueHandler) writeError(c *gin.Context, err error) {
	var notFound *ProductNotFoundError
	var variantNotFound *VariantNotFoundError
	var sizeNotFound *SizeNotFoundError
	var insufficient *InsufficientStockError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &variantNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":            err.Error(),
			"available_colors": variantNotFound.Available,
		})
	case errors.As(err, &sizeNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           err.Error(),
			"available_sizes": sizeNotFound.Available,
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to adjust stock"})
	}
}

// getOrStartSpanFromPayload garante que sempre retorna um span filho do tracing atual (ou cria um novo se não houver)
func getOrStartSpanFromPayload(ctx context.Context, operationName string, req AdjustStockRequest) (context.Context, trace.Span) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.SpanContext().IsValid() {
		return startSpanFromPayload(ctx, operationName, req)
	}
	// Se já existe um span válido, apenas o renomeia e retorna o contexto atual
	span.SetName(operationName)
	return ctx, span
}
