package main

import (
	"time"
)

// Order representa um pedido no sistema: uma venda direta ou uma malinha
// (pedido de prova/aluguel com várias peças)
type Order struct {
	ID           string      `json:"id" db:"id"`
	CustomerName string      `json:"customer_name" db:"customer_name"`
	Kind         string      `json:"kind" db:"kind"`
	Status       string      `json:"status" db:"status"`
	Reason       string      `json:"reason,omitempty" db:"reason"`
	Items        []OrderItem `json:"items"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderItem é uma linha do pedido: uma célula (produto, cor, tamanho) e a quantidade
type OrderItem struct {
	ProductID     int    `json:"product_id" db:"product_id" binding:"required"`
	Quantity      int    `json:"quantity" db:"quantity" binding:"required,gt=0"`
	SelectedColor string `json:"selected_color" db:"selected_color" binding:"required"`
	SelectedSize  string `json:"selected_size" db:"selected_size" binding:"required"`
}

// NewOrder cria uma nova instância de Order com status pendente
func NewOrder(id, customerName, kind string, items []OrderItem) *Order {
	return &Order{
		ID:           id,
		CustomerName: customerName,
		Kind:         kind,
		Status:       OrderStatusPendente,
		Items:        items,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// Confirm marca o pedido como confirmado (estoque reservado com sucesso)
func (o *Order) Confirm() error {
	if o.Status != OrderStatusPendente {
		return newStateError("only pending orders can be confirmed")
	}
	o.Status = OrderStatusConfirmado
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel marca o pedido como cancelado; cancelar um pedido já cancelado é no-op
func (o *Order) Cancel(reason string) error {
	if o.Status == OrderStatusCancelado {
		return nil
	}
	if o.Status == OrderStatusDevolvido {
		return newStateError("returned orders cannot be cancelled")
	}
	o.Status = OrderStatusCancelado
	o.Reason = reason
	o.UpdatedAt = time.Now()
	return nil
}

// Return marca a malinha como devolvida (estoque retornado)
func (o *Order) Return() error {
	if o.Kind != OrderKindMalinha {
		return newStateError("only malinhas can be returned")
	}
	if o.Status != OrderStatusConfirmado {
		return newStateError("only confirmed malinhas can be returned")
	}
	o.Status = OrderStatusDevolvido
	o.UpdatedAt = time.Now()
	return nil
}

// OrderKind representa o tipo de pedido
const (
	OrderKindVenda   = "venda"
	OrderKindMalinha = "malinha"
)

// OrderStatus representa os possíveis status de um pedido
const (
	OrderStatusPendente   = "pendente"
	OrderStatusConfirmado = "confirmado"
	OrderStatusCancelado  = "cancelado"
	OrderStatusDevolvido  = "devolvido"
)

// StateError indica uma transição de status inválida pedida pelo cliente
type StateError struct {
	msg string
}

func newStateError(msg string) *StateError {
	return &StateError{msg: msg}
}

func (e *StateError) Error() string {
	return e.msg
}
