package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

// Repository define a interface para operações de banco de dados de pedidos
type Repository interface {
	// OrderExists verifica se um pedido já existe (para idempotência)
	OrderExists(ctx context.Context, orderID string) (bool, error)

	// CreateOrder cria um novo pedido com seus itens
	CreateOrder(ctx context.Context, order *Order) error

	// UpdateOrderStatus atualiza o status (e o motivo) de um pedido
	UpdateOrderStatus(ctx context.Context, orderID, status, reason string) error

	// ReplaceOrderItems substitui os itens do pedido (edição de pedido)
	ReplaceOrderItems(ctx context.Context, orderID string, items []OrderItem) error

	// GetOrder busca um pedido pelo ID, com seus itens
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

// OrderRepository implementa Repository usando PostgreSQL
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository cria uma nova instância de OrderRepository
func NewOrderRepository(db *pgxpool.Pool) Repository {
	return &OrderRepository{
		db: db,
	}
}

// OrderExists verifica se um pedido já existe (para idempotência)
func (r *OrderRepository) OrderExists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID).Scan(&exists)
	return exists, err
}

// CreateOrder cria o pedido e seus itens numa única transação
func (r *OrderRepository) CreateOrder(ctx context.Context, order *Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_name, kind, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, order.ID, order.CustomerName, order.Kind, order.Status, order.Reason, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateOrderStatus atualiza o status de um pedido
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID, status, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $1, reason = $2, updated_at = NOW()
		WHERE id = $3
	`, status, reason, orderID)
	return err
}

// ReplaceOrderItems substitui os itens do pedido numa única transação
func (r *OrderRepository) ReplaceOrderItems(ctx context.Context, orderID string, items []OrderItem) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}

	if err := insertItems(ctx, tx, orderID, items); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET updated_at = NOW() WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to touch order: %w", err)
	}

	return tx.Commit(ctx)
}

// GetOrder busca um pedido pelo ID, com seus itens em ordem de inserção
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := r.db.QueryRow(ctx, `
		SELECT id, customer_name, kind, status, reason, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&order.ID, &order.CustomerName, &order.Kind, &order.Status, &order.Reason, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT product_id, quantity, selected_color, selected_size
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	order.Items = []OrderItem{}
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.SelectedColor, &item.SelectedSize); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &order, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []OrderItem) error {
	for i, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, selected_color, selected_size)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, i, item.ProductID, item.Quantity, item.SelectedColor, item.SelectedSize)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}
