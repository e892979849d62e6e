package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// EstoqueUseCase contém a lógica de negócio do ledger de estoque
type EstoqueUseCase struct {
	repository EstoqueRepository
	movements  *MovementLogger
	tracer     trace.Tracer

	reserveCounter      metric.Int64Counter
	restoreCounter      metric.Int64Counter
	insufficientCounter metric.Int64Counter
}

// NewEstoqueUseCase cria uma nova instância de EstoqueUseCase
func NewEstoqueUseCase(
	repository EstoqueRepository,
	movements *MovementLogger,
	tracer trace.Tracer,
	meter metric.Meter,
) *EstoqueUseCase {
	uc := &EstoqueUseCase{
		repository: repository,
		movements:  movements,
		tracer:     tracer,
	}

	if meter != nil {
		uc.reserveCounter, _ = meter.Int64Counter("estoque.reservas")
		uc.restoreCounter, _ = meter.Int64Counter("estoque.retornos")
		uc.insufficientCounter, _ = meter.Int64Counter("estoque.reservas_sem_saldo")
	}

	return uc
}

// AdjustStock aplica um delta assinado a exatamente uma célula (cor, tamanho) do produto,
// mantendo o total agregado consistente na mesma transação.
//
// O produto é carregado com LOCK PESSIMISTA (SELECT FOR UPDATE), então dois ajustes
// concorrentes no mesmo produto são serializados pelo banco: o segundo só lê o estado
// depois que o primeiro comitou. Uma reserva que deixaria a célula negativa falha sem
// escrever nada.
func (uc *EstoqueUseCase) AdjustStock(ctx context.Context, req AdjustStockRequest, direction string) (*ProductSnapshot, error) {
	log.Printf("➡️ [AJUSTE %s] ProductID: %d | Quantidade: %d | Cor: %q | Tamanho: %q",
		strings.ToUpper(direction), req.ProductID, req.Quantity, req.Color, req.Size)

	// 1. Inicia a transação
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	// 2. Obtém o produto com LOCK PESSIMISTA (SELECT FOR UPDATE)
	// Isso bloqueia a linha no banco até o Commit ou Rollback
	product, err := uc.repository.GetProductForUpdate(ctx, tx, req.ProductID)
	if err != nil {
		log.Printf("❌ [AJUSTE] GetProductForUpdate | ProductID=%d | Error=%v", req.ProductID, err)
		return nil, err
	}

	variants, err := uc.repository.ListVariants(ctx, tx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar variantes: %w", err)
	}

	cells, err := uc.repository.ListCells(ctx, tx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar células de estoque: %w", err)
	}

	// 3. Resolve (cor, tamanho) para a célula canônica
	resolvedVariant, err := ResolveVariant(product, variants, req.Color, direction)
	if err != nil {
		log.Printf("❌ [AJUSTE] Variante não encontrada | ProductID=%d | Cor=%q", req.ProductID, req.Color)
		return nil, err
	}

	resolvedCell, err := ResolveCell(req.ProductID, resolvedVariant, cells, req.Size, direction)
	if err != nil {
		log.Printf("❌ [AJUSTE] Tamanho não encontrado | ProductID=%d | Cor=%q | Tamanho=%q", req.ProductID, req.Color, req.Size)
		return nil, err
	}

	// 4. Aplica o delta
	if direction == DirectionReserve {
		if err := uc.reserve(ctx, tx, req, resolvedVariant, resolvedCell, cells); err != nil {
			return nil, err
		}
	} else {
		if err := uc.restore(ctx, tx, req, resolvedVariant, resolvedCell); err != nil {
			return nil, err
		}
	}

	// 5. Recalcula o total denormalizado na mesma transação
	newStock, err := uc.repository.RecomputeProductStock(ctx, tx, req.ProductID)
	if err != nil {
		return nil, err
	}

	// 6. Commit da transação
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("erro ao comitar ajuste de estoque: %w", err)
	}

	uc.count(ctx, direction, req)

	// 7. Trilha de auditoria: fire-and-forget, nunca falha a operação
	movementType := req.MovementType
	if movementType == "" {
		movementType = MovementTypeFor(direction)
	}
	notes := req.Notes
	if notes == "" {
		notes = req.defaultNotes(direction)
	}
	uc.movements.Enqueue(NewStockMovement(req.ProductID, req.Quantity, movementType, notes))

	log.Printf("✅ [AJUSTE %s] ProductID=%d | novo estoque total: %d", strings.ToUpper(direction), req.ProductID, newStock)

	return uc.snapshotAfterCommit(ctx, req.ProductID)
}

// reserve aplica o decremento condicional; estoque insuficiente aborta sem escrita
func (uc *EstoqueUseCase) reserve(ctx context.Context, tx Tx, req AdjustStockRequest, variant *VariantResolution, cell *CellResolution, cells []StockCell) error {
	available := 0
	for _, c := range cells {
		if c.ColorKey == variant.ColorKey && c.SizeKey == cell.SizeKey {
			available = c.Quantity
			break
		}
	}

	if available < req.Quantity {
		log.Printf("❌ [RESERVA] Estoque insuficiente | ProductID=%d | disponível=%d solicitado=%d",
			req.ProductID, available, req.Quantity)
		if uc.insufficientCounter != nil {
			uc.insufficientCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("product_id", req.ProductID)))
		}
		return &InsufficientStockError{
			ProductID: req.ProductID,
			Color:     variant.ColorName,
			Size:      cell.SizeLabel,
			Available: available,
			Requested: req.Quantity,
		}
	}

	ok, err := uc.repository.DecrementCell(ctx, tx, req.ProductID, variant.ColorKey, cell.SizeKey, req.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		// o lock pessimista torna isso inalcançável em operação normal;
		// a checagem cobre escritas feitas fora do ledger
		return &InsufficientStockError{
			ProductID: req.ProductID,
			Color:     variant.ColorName,
			Size:      cell.SizeLabel,
			Available: available,
			Requested: req.Quantity,
		}
	}

	return nil
}

// restore soma o delta à célula, criando variante e célula quando necessário.
// Devolver estoque nunca falha por destino ausente.
func (uc *EstoqueUseCase) restore(ctx context.Context, tx Tx, req AdjustStockRequest, variant *VariantResolution, cell *CellResolution) error {
	if variant.Step == ResolutionCreated {
		if err := uc.repository.EnsureVariant(ctx, tx, req.ProductID, variant.ColorKey, strings.TrimSpace(variant.ColorName)); err != nil {
			return err
		}
	}

	return uc.repository.UpsertCell(ctx, tx, StockCell{
		ProductID: req.ProductID,
		ColorKey:  variant.ColorKey,
		SizeKey:   cell.SizeKey,
		ColorName: strings.TrimSpace(variant.ColorName),
		SizeLabel: strings.TrimSpace(cell.SizeLabel),
	}, req.Quantity)
}

// GetProductSnapshot devolve a projeção aninhada de variantes do produto
func (uc *EstoqueUseCase) GetProductSnapshot(ctx context.Context, productID int) (*ProductSnapshot, error) {
	product, err := uc.repository.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	variants, err := uc.repository.GetVariants(ctx, productID)
	if err != nil {
		return nil, err
	}

	cells, err := uc.repository.GetCells(ctx, productID)
	if err != nil {
		return nil, err
	}

	return BuildSnapshot(product, variants, cells), nil
}

// ListMovements lista a trilha de auditoria
func (uc *EstoqueUseCase) ListMovements(ctx context.Context, filters MovementFilters) ([]StockMovement, error) {
	return uc.repository.ListMovements(ctx, filters)
}

func (uc *EstoqueUseCase) snapshotAfterCommit(ctx context.Context, productID int) (*ProductSnapshot, error) {
	snapshot, err := uc.GetProductSnapshot(ctx, productID)
	if err != nil {
		// o ajuste já comitou; a falha aqui é só do snapshot de retorno
		log.Printf("ℹ️ [AJUSTE] snapshot pós-commit indisponível | ProductID=%d | %v", productID, err)
		return nil, nil
	}
	return snapshot, nil
}

func (uc *EstoqueUseCase) count(ctx context.Context, direction string, req AdjustStockRequest) {
	attrs := metric.WithAttributes(attribute.Int("product_id", req.ProductID))
	if direction == DirectionReserve && uc.reserveCounter != nil {
		uc.reserveCounter.Add(ctx, 1, attrs)
	}
	if direction == DirectionRestore && uc.restoreCounter != nil {
		uc.restoreCounter.Add(ctx, 1, attrs)
	}
}

// Erros customizados

// ProductNotFoundError indica que o produto não existe
type ProductNotFoundError struct {
	ProductID int
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

// VariantNotFoundError indica cor não resolvida no caminho de reserva
type VariantNotFoundError struct {
	ProductID int
	Color     string
	Available []string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant not found for product %d: %q (cores disponíveis: %s)",
		e.ProductID, e.Color, strings.Join(e.Available, ", "))
}

// SizeNotFoundError indica tamanho ausente na variante resolvida, no caminho de reserva
type SizeNotFoundError struct {
	ProductID int
	Color     string
	Size      string
	Available []string
}

func (e *SizeNotFoundError) Error() string {
	return fmt.Sprintf("size not found for product %d, cor %q: %q (tamanhos disponíveis: %s)",
		e.ProductID, e.Color, e.Size, strings.Join(e.Available, ", "))
}

// InsufficientStockError indica que a reserva deixaria a célula negativa
type InsufficientStockError struct {
	ProductID int
	Color     string
	Size      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (cor %q, tamanho %q): disponível %d, solicitado %d",
		e.ProductID, e.Color, e.Size, e.Available, e.Requested)
}
