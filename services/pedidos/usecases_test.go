package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeOrderRepository implementa Repository em memória
type fakeOrderRepository struct {
	orders map[string]*Order
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{orders: make(map[string]*Order)}
}

func (r *fakeOrderRepository) OrderExists(_ context.Context, orderID string) (bool, error) {
	_, ok := r.orders[orderID]
	return ok, nil
}

func (r *fakeOrderRepository) CreateOrder(_ context.Context, order *Order) error {
	clone := *order
	clone.Items = append([]OrderItem(nil), order.Items...)
	r.orders[order.ID] = &clone
	return nil
}

func (r *fakeOrderRepository) UpdateOrderStatus(_ context.Context, orderID, status, reason string) error {
	order, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	if reason != "" {
		order.Reason = reason
	}
	return nil
}

func (r *fakeOrderRepository) ReplaceOrderItems(_ context.Context, orderID string, items []OrderItem) error {
	order, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Items = append([]OrderItem(nil), items...)
	return nil
}

func (r *fakeOrderRepository) GetOrder(_ context.Context, orderID string) (*Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *order
	clone.Items = append([]OrderItem(nil), order.Items...)
	return &clone, nil
}

// recordingLedger registra as chamadas e falha nas células configuradas
type recordingLedger struct {
	reserves []LedgerItem
	restores []LedgerItem
	// falha por "productID/color/size"
	failReserve map[string]*LedgerError
	failRestore map[string]error
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{
		failReserve: make(map[string]*LedgerError),
		failRestore: make(map[string]error),
	}
}

func cellKey(item LedgerItem) string {
	return fmt.Sprintf("%d/%s/%s", item.ProductID, item.Color, item.Size)
}

func (l *recordingLedger) Reserve(_ context.Context, item LedgerItem) error {
	if err, ok := l.failReserve[cellKey(item)]; ok {
		return err
	}
	l.reserves = append(l.reserves, item)
	return nil
}

func (l *recordingLedger) Restore(_ context.Context, item LedgerItem) error {
	if err, ok := l.failRestore[cellKey(item)]; ok {
		return err
	}
	l.restores = append(l.restores, item)
	return nil
}

type fakeOrchestrator struct{}

func (fakeOrchestrator) CreateOrderSaga(context.Context, CreateOrderRequest) (string, string, error) {
	return "", "", errors.New("not used in tests")
}

func newTestUseCase() (*PedidoUseCase, *fakeOrderRepository, *recordingLedger) {
	repo := newFakeOrderRepository()
	ledger := newRecordingLedger()
	return NewPedidoUseCase(repo, ledger, fakeOrchestrator{}), repo, ledger
}

func vendaRequest() CreateOrderRequest {
	return CreateOrderRequest{
		CustomerName: "Maria",
		Kind:         OrderKindVenda,
		Items: []OrderItem{
			{ProductID: 10, Quantity: 1, SelectedColor: "Preto", SelectedSize: "M"},
			{ProductID: 11, Quantity: 2, SelectedColor: "Azul", SelectedSize: "P"},
			{ProductID: 12, Quantity: 1, SelectedColor: "Verde", SelectedSize: "G"},
		},
	}
}

func TestCreateOrderConfirmsWhenAllItemsReserved(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	order, err := uc.CreateOrder(context.Background(), vendaRequest())

	assert.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmado, order.Status)
	assert.Len(t, ledger.reserves, 3)
	assert.Empty(t, ledger.restores)
	for _, item := range ledger.reserves {
		assert.Equal(t, MovementTypeVenda, item.MovementType)
	}

	stored, err := repo.GetOrder(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmado, stored.Status)
}

func TestCreateOrderCompensatesOnPartialFailure(t *testing.T) {
	uc, repo, ledger := newTestUseCase()
	ledger.failReserve["12/Verde/G"] = &LedgerError{StatusCode: 409, Message: "estoque insuficiente"}

	order, err := uc.CreateOrder(context.Background(), vendaRequest())

	assert.Error(t, err)
	assert.Nil(t, order)

	var ledgerErr *LedgerError
	assert.True(t, errors.As(err, &ledgerErr))
	assert.True(t, ledgerErr.IsInsufficientStock())

	// os dois itens já reservados foram devolvidos, em ordem inversa
	assert.Len(t, ledger.reserves, 2)
	if assert.Len(t, ledger.restores, 2) {
		assert.Equal(t, 11, ledger.restores[0].ProductID)
		assert.Equal(t, 10, ledger.restores[1].ProductID)
		assert.Equal(t, MovementTypeRetornoReserva, ledger.restores[0].MovementType)
	}

	// o pedido fica registrado como cancelado com o motivo da falha
	var stored *Order
	for _, o := range repo.orders {
		stored = o
	}
	if assert.NotNil(t, stored) {
		assert.Equal(t, OrderStatusCancelado, stored.Status)
		assert.Contains(t, stored.Reason, "estoque insuficiente")
	}
}

func TestCreateMalinhaStaysPendingWithoutReserving(t *testing.T) {
	uc, _, ledger := newTestUseCase()

	req := vendaRequest()
	req.Kind = OrderKindMalinha

	order, err := uc.CreateOrder(context.Background(), req)

	assert.NoError(t, err)
	assert.Equal(t, OrderStatusPendente, order.Status)
	assert.Empty(t, ledger.reserves)
}

func TestActivateMalinhaReservesAndConfirms(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	req := vendaRequest()
	req.Kind = OrderKindMalinha
	created, err := uc.CreateOrder(context.Background(), req)
	assert.NoError(t, err)

	order, err := uc.ActivateMalinha(context.Background(), created.ID)

	assert.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmado, order.Status)
	assert.Len(t, ledger.reserves, 3)
	for _, item := range ledger.reserves {
		assert.Equal(t, MovementTypeSaidaReserva, item.MovementType)
	}

	stored, _ := repo.GetOrder(context.Background(), created.ID)
	assert.Equal(t, OrderStatusConfirmado, stored.Status)
}

func TestActivateMalinhaRejectsVenda(t *testing.T) {
	uc, _, _ := newTestUseCase()

	created, err := uc.CreateOrder(context.Background(), vendaRequest())
	assert.NoError(t, err)

	_, err = uc.ActivateMalinha(context.Background(), created.ID)

	var stateErr *StateError
	assert.True(t, errors.As(err, &stateErr))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	created, err := uc.CreateOrder(context.Background(), vendaRequest())
	assert.NoError(t, err)
	ledger.reserves = nil

	result, err := uc.CancelOrder(context.Background(), created.ID, "cliente desistiu")

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Released)
	assert.Len(t, ledger.restores, 3)

	stored, _ := repo.GetOrder(context.Background(), created.ID)
	assert.Equal(t, OrderStatusCancelado, stored.Status)
	assert.Equal(t, "cliente desistiu", stored.Reason)
}

func TestCancelOrderToleratesRestoreFailures(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	created, err := uc.CreateOrder(context.Background(), vendaRequest())
	assert.NoError(t, err)
	ledger.failRestore["11/Azul/P"] = errors.New("produto não encontrado")

	result, err := uc.CancelOrder(context.Background(), created.ID, "")

	// o lote é tolerante: a falha é coletada e os demais itens devolvidos
	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Released)
	if assert.Len(t, result.Errors, 1) {
		assert.Contains(t, result.Errors[0], "produto não encontrado")
	}

	// o pedido é cancelado mesmo com devolução parcial
	stored, _ := repo.GetOrder(context.Background(), created.ID)
	assert.Equal(t, OrderStatusCancelado, stored.Status)
}

func TestCancelOrderIsIdempotent(t *testing.T) {
	uc, _, ledger := newTestUseCase()

	created, err := uc.CreateOrder(context.Background(), vendaRequest())
	assert.NoError(t, err)

	_, err = uc.CancelOrder(context.Background(), created.ID, "primeira vez")
	assert.NoError(t, err)
	ledger.restores = nil

	result, err := uc.CancelOrder(context.Background(), created.ID, "segunda vez")

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.Released)
	assert.Empty(t, ledger.restores)
}

func TestCancelPendingMalinhaSkipsLedger(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	req := vendaRequest()
	req.Kind = OrderKindMalinha
	created, err := uc.CreateOrder(context.Background(), req)
	assert.NoError(t, err)

	result, err := uc.CancelOrder(context.Background(), created.ID, "não ativada")

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, ledger.restores)

	stored, _ := repo.GetOrder(context.Background(), created.ID)
	assert.Equal(t, OrderStatusCancelado, stored.Status)
}

func TestReturnMalinhaRestoresAndMarksReturned(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	req := vendaRequest()
	req.Kind = OrderKindMalinha
	created, err := uc.CreateOrder(context.Background(), req)
	assert.NoError(t, err)
	_, err = uc.ActivateMalinha(context.Background(), created.ID)
	assert.NoError(t, err)

	result, err := uc.ReturnMalinha(context.Background(), created.ID)

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Released)
	assert.Len(t, ledger.restores, 3)
	for _, item := range ledger.restores {
		assert.Equal(t, MovementTypeRetornoReserva, item.MovementType)
	}

	stored, _ := repo.GetOrder(context.Background(), created.ID)
	assert.Equal(t, OrderStatusDevolvido, stored.Status)
}

func TestReturnVendaFails(t *testing.T) {
	uc, _, _ := newTestUseCase()

	created, err := uc.CreateOrder(context.Background(), vendaRequest())
	assert.NoError(t, err)

	_, err = uc.ReturnMalinha(context.Background(), created.ID)

	var stateErr *StateError
	assert.True(t, errors.As(err, &stateErr))
}

func TestUpdateOrderItemsSwapsReservations(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	created, err := uc.CreateOrder(context.Background(), vendaRequest())
	assert.NoError(t, err)
	ledger.reserves = nil

	newItems := []OrderItem{
		{ProductID: 20, Quantity: 1, SelectedColor: "Rosa", SelectedSize: "M"},
	}
	order, err := uc.UpdateOrderItems(context.Background(), created.ID, UpdateOrderRequest{Items: newItems})

	assert.NoError(t, err)
	assert.Len(t, ledger.restores, 3)
	if assert.Len(t, ledger.reserves, 1) {
		assert.Equal(t, 20, ledger.reserves[0].ProductID)
	}
	assert.Equal(t, newItems, order.Items)

	stored, _ := repo.GetOrder(context.Background(), created.ID)
	assert.Equal(t, newItems, stored.Items)
}

func TestUpdateOrderItemsReReservesOnFailure(t *testing.T) {
	uc, repo, ledger := newTestUseCase()

	created, err := uc.CreateOrder(context.Background(), vendaRequest())
	assert.NoError(t, err)
	ledger.reserves = nil
	ledger.failReserve["20/Rosa/M"] = &LedgerError{StatusCode: 409, Message: "estoque insuficiente"}

	newItems := []OrderItem{
		{ProductID: 20, Quantity: 1, SelectedColor: "Rosa", SelectedSize: "M"},
	}
	_, err = uc.UpdateOrderItems(context.Background(), created.ID, UpdateOrderRequest{Items: newItems})

	assert.Error(t, err)

	// os itens antigos foram devolvidos e re-reservados (melhor esforço)
	assert.Len(t, ledger.restores, 3)
	assert.Len(t, ledger.reserves, 3)

	// os itens persistidos não mudam
	stored, _ := repo.GetOrder(context.Background(), created.ID)
	assert.Len(t, stored.Items, 3)
	assert.Equal(t, 10, stored.Items[0].ProductID)
}

func TestUpdateOrderItemsRejectsPendingOrder(t *testing.T) {
	uc, _, _ := newTestUseCase()

	req := vendaRequest()
	req.Kind = OrderKindMalinha
	created, err := uc.CreateOrder(context.Background(), req)
	assert.NoError(t, err)

	_, err = uc.UpdateOrderItems(context.Background(), created.ID, UpdateOrderRequest{
		Items: []OrderItem{{ProductID: 1, Quantity: 1, SelectedColor: "Preto", SelectedSize: "M"}},
	})

	var stateErr *StateError
	assert.True(t, errors.As(err, &stateErr))
}

func TestCreateOrderActionIsIdempotent(t *testing.T) {
	uc, repo, _ := newTestUseCase()

	req := SagaActionRequest{
		OrderID:      "saga-1",
		CustomerName: "Maria",
		Kind:         OrderKindVenda,
		Items:        vendaRequest().Items,
	}

	assert.NoError(t, uc.CreateOrderAction(context.Background(), req))
	assert.NoError(t, uc.CreateOrderAction(context.Background(), req))

	assert.Len(t, repo.orders, 1)
	assert.Equal(t, OrderStatusPendente, repo.orders["saga-1"].Status)
}

func TestSagaActionsDriveStatus(t *testing.T) {
	uc, repo, _ := newTestUseCase()

	req := SagaActionRequest{OrderID: "saga-2", CustomerName: "Maria", Items: vendaRequest().Items}
	assert.NoError(t, uc.CreateOrderAction(context.Background(), req))

	assert.NoError(t, uc.CompleteOrderAction(context.Background(), req))
	assert.Equal(t, OrderStatusConfirmado, repo.orders["saga-2"].Status)

	assert.NoError(t, uc.CancelOrderAction(context.Background(), req))
	assert.Equal(t, OrderStatusCancelado, repo.orders["saga-2"].Status)
}
