package main

import (
	"testing"
)

func TestNewOrderStartsPending(t *testing.T) {
	order := NewOrder("abc", "Ana", OrderKindVenda, []OrderItem{{ProductID: 1, Quantity: 1}})

	if order.Status != OrderStatusPendente {
		t.Errorf("expected status %q, got %q", OrderStatusPendente, order.Status)
	}
	if order.CreatedAt.IsZero() || order.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestConfirmOnlyFromPending(t *testing.T) {
	order := NewOrder("abc", "Ana", OrderKindVenda, nil)

	if err := order.Confirm(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != OrderStatusConfirmado {
		t.Errorf("expected status %q, got %q", OrderStatusConfirmado, order.Status)
	}

	if err := order.Confirm(); err == nil {
		t.Error("expected error confirming an already confirmed order")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	order := NewOrder("abc", "Ana", OrderKindVenda, nil)

	if err := order.Cancel("sem estoque"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != OrderStatusCancelado {
		t.Errorf("expected status %q, got %q", OrderStatusCancelado, order.Status)
	}
	if order.Reason != "sem estoque" {
		t.Errorf("expected reason to be recorded, got %q", order.Reason)
	}

	// segundo cancelamento é no-op e preserva o motivo original
	if err := order.Cancel("outro motivo"); err != nil {
		t.Fatalf("unexpected error on second cancel: %v", err)
	}
	if order.Reason != "sem estoque" {
		t.Errorf("expected original reason, got %q", order.Reason)
	}
}

func TestCancelReturnedOrderFails(t *testing.T) {
	order := NewOrder("abc", "Ana", OrderKindMalinha, nil)
	_ = order.Confirm()
	if err := order.Return(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := order.Cancel("tarde demais"); err == nil {
		t.Error("expected error cancelling a returned malinha")
	}
}

func TestReturnOnlyConfirmedMalinhas(t *testing.T) {
	venda := NewOrder("v1", "Ana", OrderKindVenda, nil)
	_ = venda.Confirm()
	if err := venda.Return(); err == nil {
		t.Error("expected error returning a venda")
	}

	pendente := NewOrder("m1", "Ana", OrderKindMalinha, nil)
	if err := pendente.Return(); err == nil {
		t.Error("expected error returning a pending malinha")
	}

	confirmada := NewOrder("m2", "Ana", OrderKindMalinha, nil)
	_ = confirmada.Confirm()
	if err := confirmada.Return(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmada.Status != OrderStatusDevolvido {
		t.Errorf("expected status %q, got %q", OrderStatusDevolvido, confirmada.Status)
	}
}

func TestMovementTypeForKind(t *testing.T) {
	if got := MovementTypeForKind(OrderKindVenda); got != MovementTypeVenda {
		t.Errorf("expected %q, got %q", MovementTypeVenda, got)
	}
	if got := MovementTypeForKind(OrderKindMalinha); got != MovementTypeSaidaReserva {
		t.Errorf("expected %q, got %q", MovementTypeSaidaReserva, got)
	}
}
