package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product representa um produto do catálogo com seu estoque agregado
type Product struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	Stock     int       `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Variant representa a projeção aninhada de uma cor do produto,
// no formato consumido pelo storefront e pelo painel administrativo
type Variant struct {
	ColorName string      `json:"colorName"`
	Images    []string    `json:"images"`
	SizeStock []SizeStock `json:"sizeStock"`
}

// SizeStock representa a quantidade disponível de um tamanho dentro de uma variante
type SizeStock struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// StockCell é a menor unidade de estoque rastreável: uma célula (produto, cor, tamanho).
// As chaves normalizadas identificam a célula; os rótulos preservam a grafia original.
type StockCell struct {
	ProductID int    `json:"product_id" db:"product_id"`
	ColorKey  string `json:"color_key" db:"color_key"`
	SizeKey   string `json:"size_key" db:"size_key"`
	ColorName string `json:"color_name" db:"color_name"`
	SizeLabel string `json:"size_label" db:"size_label"`
	Quantity  int    `json:"quantity" db:"quantity"`
}

// VariantRow é a linha de metadados de exibição de uma variante
type VariantRow struct {
	ProductID int      `json:"product_id" db:"product_id"`
	ColorKey  string   `json:"color_key" db:"color_key"`
	ColorName string   `json:"color_name" db:"color_name"`
	Images    []string `json:"images" db:"images"`
}

// ProductSnapshot é o retrato completo do produto devolvido pelas operações do ledger
type ProductSnapshot struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Stock     int       `json:"stock"`
	Variants  []Variant `json:"variants"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockMovement registra cada ajuste de estoque na trilha de auditoria.
// Linhas são append-only e nunca relidas pelo ledger.
type StockMovement struct {
	ID           string    `json:"id" db:"id"`
	ProductID    int       `json:"product_id" db:"product_id"`
	Quantity     int       `json:"quantity" db:"quantity"`
	MovementType string    `json:"movement_type" db:"movement_type"`
	Notes        string    `json:"notes" db:"notes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// NewStockMovement cria uma nova linha de movimentação de estoque
func NewStockMovement(productID, quantity int, movementType, notes string) StockMovement {
	return StockMovement{
		ID:           uuid.New().String(),
		ProductID:    productID,
		Quantity:     quantity,
		MovementType: movementType,
		Notes:        notes,
		CreatedAt:    time.Now(),
	}
}

// MovementType representa os tipos de movimentação de estoque
const (
	MovementTypeVenda          = "venda"
	MovementTypeSaidaReserva   = "saida_reserva"
	MovementTypeRetornoReserva = "retorno_reserva"
	MovementTypeAjusteManual   = "ajuste_manual"
)

// Direction representa o sentido de um ajuste de estoque
const (
	DirectionReserve = "reserve"
	DirectionRestore = "restore"
)

// normalizeKey normaliza cor e tamanho para comparação: trim + minúsculas
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MovementTypeFor deriva o tipo de movimentação a partir do sentido do ajuste
func MovementTypeFor(direction string) string {
	if direction == DirectionRestore {
		return MovementTypeRetornoReserva
	}
	return MovementTypeSaidaReserva
}

// BuildSnapshot monta a projeção aninhada de variantes a partir das linhas normalizadas.
// Variantes sem células aparecem com sizeStock vazio; a ordem das linhas é preservada.
func BuildSnapshot(product *Product, variants []VariantRow, cells []StockCell) *ProductSnapshot {
	snapshot := &ProductSnapshot{
		ID:        product.ID,
		Name:      product.Name,
		Color:     product.Color,
		Stock:     product.Stock,
		Variants:  make([]Variant, 0, len(variants)),
		UpdatedAt: product.UpdatedAt,
	}

	index := make(map[string]int, len(variants))
	for _, row := range variants {
		images := row.Images
		if images == nil {
			images = []string{}
		}
		index[row.ColorKey] = len(snapshot.Variants)
		snapshot.Variants = append(snapshot.Variants, Variant{
			ColorName: row.ColorName,
			Images:    images,
			SizeStock: []SizeStock{},
		})
	}

	for _, cell := range cells {
		i, ok := index[cell.ColorKey]
		if !ok {
			// célula órfã de variante: ainda assim aparece na projeção
			index[cell.ColorKey] = len(snapshot.Variants)
			snapshot.Variants = append(snapshot.Variants, Variant{
				ColorName: cell.ColorName,
				Images:    []string{},
				SizeStock: []SizeStock{},
			})
			i = index[cell.ColorKey]
		}
		snapshot.Variants[i].SizeStock = append(snapshot.Variants[i].SizeStock, SizeStock{
			Size:     cell.SizeLabel,
			Quantity: cell.Quantity,
		})
	}

	return snapshot
}

// SumCells calcula o total agregado de estoque a partir das células
func SumCells(cells []StockCell) int {
	total := 0
	for _, cell := range cells {
		total += cell.Quantity
	}
	return total
}

// AdjustStockRequest é a requisição de ajuste de uma única célula de estoque
type AdjustStockRequest struct {
	ProductID int    `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Color     string `json:"color" binding:"required"`
	Size      string `json:"size" binding:"required"`
	// MovementType sobrescreve o tipo derivado do sentido (ex: venda direta)
	MovementType string `json:"movement_type,omitempty"`
	Notes        string `json:"notes,omitempty"`
	// Manual trace context propagation (DTM doesn't propagate W3C headers)
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

func (r AdjustStockRequest) defaultNotes(direction string) string {
	verb := "reserva"
	if direction == DirectionRestore {
		verb = "retorno"
	}
	return fmt.Sprintf("%s de %d unidade(s) | cor=%s tamanho=%s", verb, r.Quantity, strings.TrimSpace(r.Color), strings.TrimSpace(r.Size))
}
