package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EstoqueRepository define a interface para operações de banco de dados do ledger
type EstoqueRepository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// GetProductForUpdate obtém o produto com lock pessimista (FOR UPDATE),
	// serializando todos os ajustes de estoque daquele produto
	GetProductForUpdate(ctx context.Context, tx Tx, productID int) (*Product, error)
	ListVariants(ctx context.Context, tx Tx, productID int) ([]VariantRow, error)
	ListCells(ctx context.Context, tx Tx, productID int) ([]StockCell, error)

	// DecrementCell aplica o decremento condicional; retorna false quando a célula
	// não tem quantidade suficiente (nenhuma linha afetada)
	DecrementCell(ctx context.Context, tx Tx, productID int, colorKey, sizeKey string, quantity int) (bool, error)
	UpsertCell(ctx context.Context, tx Tx, cell StockCell, quantity int) error
	EnsureVariant(ctx context.Context, tx Tx, productID int, colorKey, colorName string) error

	// RecomputeProductStock atualiza o total denormalizado a partir da soma das células
	RecomputeProductStock(ctx context.Context, tx Tx, productID int) (int, error)

	GetProduct(ctx context.Context, productID int) (*Product, error)
	GetVariants(ctx context.Context, productID int) ([]VariantRow, error)
	GetCells(ctx context.Context, productID int) ([]StockCell, error)

	InsertMovement(ctx context.Context, movement StockMovement) error
	ListMovements(ctx context.Context, filters MovementFilters) ([]StockMovement, error)
}

// MovementFilters filtra a listagem de movimentações
type MovementFilters struct {
	ProductID    int
	MovementType string
	Limit        int
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// PostgresEstoqueRepository implementa EstoqueRepository usando PostgreSQL
type PostgresEstoqueRepository struct {
	pool *pgxpool.Pool
}

// NewEstoqueRepository cria uma nova instância de PostgresEstoqueRepository
func NewEstoqueRepository(pool *pgxpool.Pool) EstoqueRepository {
	return &PostgresEstoqueRepository{pool: pool}
}

// BeginTx inicia uma nova transação
func (r *PostgresEstoqueRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &PostgresTx{tx: tx}, nil
}

// GetProductForUpdate obtém o produto com lock pessimista (FOR UPDATE)
func (r *PostgresEstoqueRepository) GetProductForUpdate(ctx context.Context, tx Tx, productID int) (*Product, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT id, name, color, stock, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`

	var product Product
	err := pgTx.QueryRow(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.Color,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ProductNotFoundError{ProductID: productID}
		}
		return nil, fmt.Errorf("failed to get product for update: %w", err)
	}

	return &product, nil
}

// ListVariants lista as variantes do produto dentro da transação
func (r *PostgresEstoqueRepository) ListVariants(ctx context.Context, tx Tx, productID int) ([]VariantRow, error) {
	pgTx := tx.(*PostgresTx).tx
	return scanVariants(pgTx.Query(ctx, `
		SELECT product_id, color_key, color_name, images
		FROM product_variants
		WHERE product_id = $1
		ORDER BY position, color_key
	`, productID))
}

// ListCells lista as células de estoque do produto dentro da transação
func (r *PostgresEstoqueRepository) ListCells(ctx context.Context, tx Tx, productID int) ([]StockCell, error) {
	pgTx := tx.(*PostgresTx).tx
	return scanCells(pgTx.Query(ctx, `
		SELECT product_id, color_key, size_key, color_name, size_label, quantity
		FROM stock_cells
		WHERE product_id = $1
		ORDER BY color_key, position, size_key
	`, productID))
}

// DecrementCell aplica o decremento condicional na célula.
// A cláusula quantity >= $4 detecta estoque insuficiente de forma atômica,
// mesmo que a disciplina de lock seja contornada por outro caminho.
func (r *PostgresEstoqueRepository) DecrementCell(ctx context.Context, tx Tx, productID int, colorKey, sizeKey string, quantity int) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE stock_cells
		SET quantity = quantity - $4
		WHERE product_id = $1 AND color_key = $2 AND size_key = $3 AND quantity >= $4
	`, productID, colorKey, sizeKey, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock cell: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// UpsertCell soma quantity à célula, criando-a caso não exista
func (r *PostgresEstoqueRepository) UpsertCell(ctx context.Context, tx Tx, cell StockCell, quantity int) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO stock_cells (product_id, color_key, size_key, color_name, size_label, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, color_key, size_key)
		DO UPDATE SET quantity = stock_cells.quantity + EXCLUDED.quantity
	`, cell.ProductID, cell.ColorKey, cell.SizeKey, cell.ColorName, cell.SizeLabel, quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert stock cell: %w", err)
	}

	return nil
}

// EnsureVariant cria a linha de variante caso ela ainda não exista (imagens vazias)
func (r *PostgresEstoqueRepository) EnsureVariant(ctx context.Context, tx Tx, productID int, colorKey, colorName string) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO product_variants (product_id, color_key, color_name, images)
		VALUES ($1, $2, $3, '[]'::jsonb)
		ON CONFLICT (product_id, color_key) DO NOTHING
	`, productID, colorKey, colorName)
	if err != nil {
		return fmt.Errorf("failed to ensure variant: %w", err)
	}

	return nil
}

// RecomputeProductStock atualiza o total denormalizado e o updated_at do produto
func (r *PostgresEstoqueRepository) RecomputeProductStock(ctx context.Context, tx Tx, productID int) (int, error) {
	pgTx := tx.(*PostgresTx).tx

	var stock int
	err := pgTx.QueryRow(ctx, `
		UPDATE products
		SET stock = (
			SELECT COALESCE(SUM(quantity), 0)
			FROM stock_cells
			WHERE product_id = $1
		),
		updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`, productID).Scan(&stock)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute product stock: %w", err)
	}

	return stock, nil
}

// GetProduct busca o produto sem lock (leitura de snapshot)
func (r *PostgresEstoqueRepository) GetProduct(ctx context.Context, productID int) (*Product, error) {
	var product Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, color, stock, created_at, updated_at
		FROM products WHERE id = $1
	`, productID).Scan(
		&product.ID,
		&product.Name,
		&product.Color,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ProductNotFoundError{ProductID: productID}
		}
		return nil, err
	}
	return &product, nil
}

// GetVariants lista as variantes do produto fora de transação
func (r *PostgresEstoqueRepository) GetVariants(ctx context.Context, productID int) ([]VariantRow, error) {
	return scanVariants(r.pool.Query(ctx, `
		SELECT product_id, color_key, color_name, images
		FROM product_variants
		WHERE product_id = $1
		ORDER BY position, color_key
	`, productID))
}

// GetCells lista as células do produto fora de transação
func (r *PostgresEstoqueRepository) GetCells(ctx context.Context, productID int) ([]StockCell, error) {
	return scanCells(r.pool.Query(ctx, `
		SELECT product_id, color_key, size_key, color_name, size_label, quantity
		FROM stock_cells
		WHERE product_id = $1
		ORDER BY color_key, position, size_key
	`, productID))
}

// InsertMovement insere a linha de movimentação (trilha de auditoria)
func (r *PostgresEstoqueRepository) InsertMovement(ctx context.Context, movement StockMovement) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, quantity, movement_type, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, movement.ID, movement.ProductID, movement.Quantity, movement.MovementType, movement.Notes, movement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert movement record: %w", err)
	}
	return nil
}

// ListMovements lista movimentações da mais recente para a mais antiga
func (r *PostgresEstoqueRepository) ListMovements(ctx context.Context, filters MovementFilters) ([]StockMovement, error) {
	query := `
		SELECT id, product_id, quantity, movement_type, notes, created_at
		FROM stock_movements
		WHERE ($1 = 0 OR product_id = $1)
		  AND ($2 = '' OR movement_type = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, query, filters.ProductID, filters.MovementType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := []StockMovement{}
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.MovementType, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanVariants(rows pgx.Rows, err error) ([]VariantRow, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := []VariantRow{}
	for rows.Next() {
		var v VariantRow
		if err := rows.Scan(&v.ProductID, &v.ColorKey, &v.ColorName, &v.Images); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func scanCells(rows pgx.Rows, err error) ([]StockCell, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cells := []StockCell{}
	for rows.Next() {
		var c StockCell
		if err := rows.Scan(&c.ProductID, &c.ColorKey, &c.SizeKey, &c.ColorName, &c.SizeLabel, &c.Quantity); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}
