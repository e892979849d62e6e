package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// CreateOrderRequest representa a requisição para criar um pedido
type CreateOrderRequest struct {
	CustomerName string      `json:"customer_name" binding:"required"`
	Kind         string      `json:"kind"`
	Items        []OrderItem `json:"items" binding:"required,min=1,dive"`
}

// UpdateOrderRequest representa a requisição para editar os itens de um pedido
type UpdateOrderRequest struct {
	Items []OrderItem `json:"items" binding:"required,min=1,dive"`
}

// SagaActionRequest representa a requisição das ações SAGA de pedidos
type SagaActionRequest struct {
	OrderID      string      `json:"order_id" binding:"required"`
	CustomerName string      `json:"customer_name"`
	Kind         string      `json:"kind"`
	Items        []OrderItem `json:"items"`
	// Manual trace context propagation (DTM doesn't propagate W3C headers)
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ReleaseResult resume um lote tolerante de devoluções de estoque
type ReleaseResult struct {
	Success  bool     `json:"success"`
	Released int      `json:"released"`
	Errors   []string `json:"errors,omitempty"`
}

// PedidoUseCase contém a lógica de negócio dos pedidos
type PedidoUseCase struct {
	repository       Repository
	ledger           Ledger
	sagaOrchestrator SagaOrchestrator
}

// NewPedidoUseCase cria uma nova instância de PedidoUseCase
func NewPedidoUseCase(
	repository Repository,
	ledger Ledger,
	sagaOrchestrator SagaOrchestrator,
) *PedidoUseCase {
	return &PedidoUseCase{
		repository:       repository,
		ledger:           ledger,
		sagaOrchestrator: sagaOrchestrator,
	}
}

// CreateOrder cria o pedido e reserva o estoque item a item, em sequência.
//
// Na primeira falha, os itens já reservados são devolvidos (em ordem inversa)
// antes de propagar o erro: o estoque nunca fica parcialmente debitado por um
// pedido que não se concretizou. Malinhas são criadas pendentes, sem tocar o
// estoque; a reserva acontece na ativação.
func (uc *PedidoUseCase) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	kind := req.Kind
	if kind == "" {
		kind = OrderKindVenda
	}

	order := NewOrder(uuid.New().String(), req.CustomerName, kind, req.Items)
	log.Printf("➡️ [CRIAR PEDIDO] OrderID: %s | Tipo: %s | Itens: %d", order.ID, kind, len(order.Items))

	if err := uc.repository.CreateOrder(ctx, order); err != nil {
		log.Printf("❌ Failed to create order: %v", err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if kind == OrderKindMalinha {
		log.Printf("✅ Malinha criada pendente (estoque intocado): %s", order.ID)
		return order, nil
	}

	if err := uc.reserveItems(ctx, order, MovementTypeForKind(kind)); err != nil {
		reason := err.Error()
		_ = order.Cancel(reason)
		if updateErr := uc.repository.UpdateOrderStatus(ctx, order.ID, OrderStatusCancelado, reason); updateErr != nil {
			log.Printf("❌ Failed to mark order as cancelled: %v", updateErr)
		}
		return nil, err
	}

	if err := order.Confirm(); err != nil {
		return nil, err
	}
	if err := uc.repository.UpdateOrderStatus(ctx, order.ID, OrderStatusConfirmado, ""); err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	log.Printf("✅ Pedido confirmado: %s", order.ID)
	return order, nil
}

// ActivateMalinha reserva o estoque de uma malinha pendente (mesma compensação da venda)
func (uc *PedidoUseCase) ActivateMalinha(ctx context.Context, orderID string) (*Order, error) {
	log.Printf("➡️ [ATIVAR MALINHA] OrderID: %s", orderID)

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Kind != OrderKindMalinha {
		return nil, newStateError(fmt.Sprintf("order %s is not a malinha", orderID))
	}
	if order.Status != OrderStatusPendente {
		return nil, newStateError(fmt.Sprintf("only pending malinhas can be activated (status: %s)", order.Status))
	}

	if err := uc.reserveItems(ctx, order, MovementTypeSaidaReserva); err != nil {
		return nil, err
	}

	if err := order.Confirm(); err != nil {
		return nil, err
	}
	if err := uc.repository.UpdateOrderStatus(ctx, order.ID, OrderStatusConfirmado, ""); err != nil {
		return nil, fmt.Errorf("failed to confirm malinha: %w", err)
	}

	log.Printf("✅ Malinha ativada: %s", order.ID)
	return order, nil
}

// CancelOrder devolve o estoque do pedido num lote tolerante e o marca cancelado.
// Cancelar um pedido já cancelado é no-op.
func (uc *PedidoUseCase) CancelOrder(ctx context.Context, orderID, reason string) (*ReleaseResult, error) {
	log.Printf("↩️ [CANCELAR PEDIDO] OrderID: %s", orderID)

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == OrderStatusCancelado {
		log.Printf("ℹ️ [IDEMPOTÊNCIA] Pedido já cancelado: %s", orderID)
		return &ReleaseResult{Success: true}, nil
	}

	// pedidos pendentes (malinha não ativada) nunca debitaram estoque
	result := &ReleaseResult{Success: true}
	if order.Status == OrderStatusConfirmado {
		result = uc.restoreItems(ctx, order.Items, MovementTypeRetornoReserva,
			fmt.Sprintf("cancelamento do pedido %s", order.ID))
	}

	if err := order.Cancel(reason); err != nil {
		return nil, err
	}
	if err := uc.repository.UpdateOrderStatus(ctx, order.ID, OrderStatusCancelado, reason); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	log.Printf("♻️  Pedido cancelado: %s (%d itens devolvidos)", order.ID, result.Released)
	return result, nil
}

// ReturnMalinha devolve o estoque de uma malinha confirmada e a marca devolvida
func (uc *PedidoUseCase) ReturnMalinha(ctx context.Context, orderID string) (*ReleaseResult, error) {
	log.Printf("↩️ [DEVOLVER MALINHA] OrderID: %s", orderID)

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == OrderStatusDevolvido {
		log.Printf("ℹ️ [IDEMPOTÊNCIA] Malinha já devolvida: %s", orderID)
		return &ReleaseResult{Success: true}, nil
	}

	if err := order.Return(); err != nil {
		return nil, err
	}

	result := uc.restoreItems(ctx, order.Items, MovementTypeRetornoReserva,
		fmt.Sprintf("devolução da malinha %s", order.ID))

	if err := uc.repository.UpdateOrderStatus(ctx, order.ID, OrderStatusDevolvido, ""); err != nil {
		return nil, fmt.Errorf("failed to mark malinha as returned: %w", err)
	}

	log.Printf("✅ Malinha devolvida: %s (%d itens)", order.ID, result.Released)
	return result, nil
}

// UpdateOrderItems edita os itens de um pedido confirmado: devolve os antigos,
// reserva os novos. Se alguma reserva nova falhar, os novos já reservados são
// devolvidos e os antigos re-reservados (melhor esforço), e a edição é rejeitada.
func (uc *PedidoUseCase) UpdateOrderItems(ctx context.Context, orderID string, req UpdateOrderRequest) (*Order, error) {
	log.Printf("➡️ [EDITAR PEDIDO] OrderID: %s | Novos itens: %d", orderID, len(req.Items))

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderStatusConfirmado {
		return nil, newStateError(fmt.Sprintf("only confirmed orders can be edited (status: %s)", order.Status))
	}

	oldItems := order.Items
	uc.restoreItems(ctx, oldItems, MovementTypeRetornoReserva,
		fmt.Sprintf("edição do pedido %s", order.ID))

	order.Items = req.Items
	if err := uc.reserveItems(ctx, order, MovementTypeForKind(order.Kind)); err != nil {
		// melhor esforço: re-reserva os itens antigos para voltar ao estado anterior
		order.Items = oldItems
		if reserveErr := uc.reserveItems(ctx, order, MovementTypeForKind(order.Kind)); reserveErr != nil {
			log.Printf("❌ Failed to re-reserve original items of order %s: %v", order.ID, reserveErr)
		}
		return nil, err
	}

	if err := uc.repository.ReplaceOrderItems(ctx, order.ID, req.Items); err != nil {
		return nil, fmt.Errorf("failed to persist edited items: %w", err)
	}

	log.Printf("✅ Pedido editado: %s", order.ID)
	return order, nil
}

// GetOrder retorna um pedido com seus itens
func (uc *PedidoUseCase) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return uc.repository.GetOrder(ctx, orderID)
}

// CreateOrderSaga orquestra a venda via DTM (compensação garantida pelo coordenador)
func (uc *PedidoUseCase) CreateOrderSaga(ctx context.Context, req CreateOrderRequest) (string, string, error) {
	orderID, gid, err := uc.sagaOrchestrator.CreateOrderSaga(ctx, req)
	if err != nil || orderID == "" {
		if orderID == "" {
			orderID = uuid.New().String()
		}

		_ = uc.CreateFailedOrder(ctx, req, orderID)
		return "", "", fmt.Errorf("registering failed order to recover saga failure: %s", err.Error())
	}

	return orderID, gid, nil
}

// CreateFailedOrder registra o pedido como cancelado quando a SAGA nem chegou a registrar
func (uc *PedidoUseCase) CreateFailedOrder(ctx context.Context, req CreateOrderRequest, orderID string) error {
	order := NewOrder(orderID, req.CustomerName, req.Kind, req.Items)

	if err := order.Cancel("saga registration failed"); err != nil {
		return fmt.Errorf("registering failed order: %w", err)
	}

	if err := uc.repository.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// CreateOrderAction é a ação SAGA que cria o pedido pendente
func (uc *PedidoUseCase) CreateOrderAction(ctx context.Context, req SagaActionRequest) error {
	log.Printf("➡️ [SAGA CRIAR PEDIDO] OrderID: %s", req.OrderID)

	exists, err := uc.repository.OrderExists(ctx, req.OrderID)
	if err != nil {
		return fmt.Errorf("error to check idempotency: %w", err)
	}
	if exists {
		log.Printf("ℹ️ [IDEMPOTÊNCIA] Pedido já criado para OrderID=%s", req.OrderID)
		return nil
	}

	order := NewOrder(req.OrderID, req.CustomerName, req.Kind, req.Items)
	if err := uc.repository.CreateOrder(ctx, order); err != nil {
		log.Printf("❌ Failed to create order: %v", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	log.Printf("✅ Order created: %s", req.OrderID)
	return nil
}

// CompleteOrderAction é a ação SAGA que confirma o pedido
func (uc *PedidoUseCase) CompleteOrderAction(ctx context.Context, req SagaActionRequest) error {
	log.Printf("✅ [SAGA CONFIRMAR PEDIDO] OrderID: %s", req.OrderID)

	if err := uc.repository.UpdateOrderStatus(ctx, req.OrderID, OrderStatusConfirmado, ""); err != nil {
		log.Printf("❌ Failed to complete order: %v", err)
		return fmt.Errorf("failed to complete order: %w", err)
	}

	return nil
}

// CancelOrderAction é a ação SAGA de compensação (marca o pedido cancelado)
func (uc *PedidoUseCase) CancelOrderAction(ctx context.Context, req SagaActionRequest) error {
	log.Printf("↩️ [SAGA COMPENSAR PEDIDO] OrderID: %s", req.OrderID)

	if err := uc.repository.UpdateOrderStatus(ctx, req.OrderID, OrderStatusCancelado, "saga compensation"); err != nil {
		log.Printf("❌ Failed to compensate order: %v", err)
		return fmt.Errorf("failed to compensate order: %w", err)
	}

	log.Printf("♻️  Order compensated (cancelled): %s", req.OrderID)
	return nil
}

// reserveItems aplica as reservas em sequência, compensando na primeira falha
func (uc *PedidoUseCase) reserveItems(ctx context.Context, order *Order, movementType string) error {
	reserved := make([]OrderItem, 0, len(order.Items))

	for i, item := range order.Items {
		err := uc.ledger.Reserve(ctx, ledgerItem(ctx, order, item, movementType))
		if err == nil {
			reserved = append(reserved, item)
			continue
		}

		log.Printf("❌ [RESERVA] Item %d/%d falhou | OrderID=%s | ProductID=%d: %v",
			i+1, len(order.Items), order.ID, item.ProductID, err)

		// compensação: devolve os itens já reservados, em ordem inversa
		for j := len(reserved) - 1; j >= 0; j-- {
			compensated := reserved[j]
			if restoreErr := uc.ledger.Restore(ctx, ledgerItem(ctx, order, compensated, MovementTypeRetornoReserva)); restoreErr != nil {
				log.Printf("❌ [COMPENSAÇÃO] Falha ao devolver item | OrderID=%s | ProductID=%d: %v",
					order.ID, compensated.ProductID, restoreErr)
			}
		}

		return fmt.Errorf("failed to reserve item %d of order %s: %w", i+1, order.ID, err)
	}

	return nil
}

// restoreItems devolve os itens num lote tolerante: falhas são coletadas, o laço continua
func (uc *PedidoUseCase) restoreItems(ctx context.Context, items []OrderItem, movementType, notes string) *ReleaseResult {
	result := &ReleaseResult{Success: true}

	for i, item := range items {
		ledgerNotes := fmt.Sprintf("%s | cor=%s tamanho=%s", notes, item.SelectedColor, item.SelectedSize)
		err := uc.ledger.Restore(ctx, LedgerItem{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			Color:        item.SelectedColor,
			Size:         item.SelectedSize,
			MovementType: movementType,
			Notes:        ledgerNotes,
		})
		if err != nil {
			log.Printf("❌ [DEVOLUÇÃO] Item %d/%d falhou (continuando) | ProductID=%d: %v",
				i+1, len(items), item.ProductID, err)
			result.Success = false
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Released++
	}

	return result
}

func ledgerItem(ctx context.Context, order *Order, item OrderItem, movementType string) LedgerItem {
	traceID, spanID := "", ""
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		spanID = span.SpanContext().SpanID().String()
	}

	return LedgerItem{
		ProductID:    item.ProductID,
		Quantity:     item.Quantity,
		Color:        item.SelectedColor,
		Size:         item.SelectedSize,
		MovementType: movementType,
		Notes:        fmt.Sprintf("pedido %s (%s)", order.ID, order.Kind),
		TraceID:      traceID,
		SpanID:       spanID,
	}
}

// MovementTypeForKind deriva o tipo de movimentação do tipo do pedido
func MovementTypeForKind(kind string) string {
	if kind == OrderKindVenda {
		return MovementTypeVenda
	}
	return MovementTypeSaidaReserva
}

// Tipos de movimentação aceitos pelo ledger de estoque
const (
	MovementTypeVenda          = "venda"
	MovementTypeSaidaReserva   = "saida_reserva"
	MovementTypeRetornoReserva = "retorno_reserva"
)
