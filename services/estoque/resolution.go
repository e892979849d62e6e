package main

import "log"

// ResolutionStep identifica qual etapa do pipeline resolveu a variante/tamanho
type ResolutionStep string

const (
	ResolutionExact        ResolutionStep = "exact_match"
	ResolutionDefaultColor ResolutionStep = "default_color_match"
	ResolutionSoleVariant  ResolutionStep = "sole_variant_match"
	ResolutionCreated      ResolutionStep = "created"
)

// VariantResolution é o resultado da resolução de cor
type VariantResolution struct {
	ColorKey  string
	ColorName string
	Step      ResolutionStep
}

// CellResolution é o resultado da resolução de tamanho dentro da variante escolhida
type CellResolution struct {
	SizeKey   string
	SizeLabel string
	Step      ResolutionStep
}

// ResolveVariant resolve a cor informada pelo caller para uma variante canônica.
// Pipeline: ExactMatch → DefaultColorMatch → SoleVariantMatch → CreateNew.
// As duas últimas etapas valem apenas para o caminho de retorno; na reserva,
// cor não resolvida é erro com a lista de cores disponíveis.
func ResolveVariant(product *Product, variants []VariantRow, color, direction string) (*VariantResolution, error) {
	colorKey := normalizeKey(color)

	for _, row := range variants {
		if row.ColorKey == colorKey {
			return &VariantResolution{ColorKey: row.ColorKey, ColorName: row.ColorName, Step: ResolutionExact}, nil
		}
	}

	defaultKey := normalizeKey(product.Color)
	if defaultKey != "" {
		for _, row := range variants {
			if row.ColorKey == defaultKey {
				log.Printf("ℹ️ [RESOLUÇÃO] cor %q não encontrada no produto %d, usando cor padrão %q", color, product.ID, product.Color)
				return &VariantResolution{ColorKey: row.ColorKey, ColorName: row.ColorName, Step: ResolutionDefaultColor}, nil
			}
		}
	}

	if direction == DirectionRestore {
		if len(variants) == 1 {
			log.Printf("ℹ️ [RESOLUÇÃO] cor %q não encontrada no produto %d, usando a única variante %q", color, product.ID, variants[0].ColorName)
			return &VariantResolution{ColorKey: variants[0].ColorKey, ColorName: variants[0].ColorName, Step: ResolutionSoleVariant}, nil
		}
		log.Printf("ℹ️ [RESOLUÇÃO] criando variante %q no produto %d para devolver estoque", color, product.ID)
		return &VariantResolution{ColorKey: colorKey, ColorName: color, Step: ResolutionCreated}, nil
	}

	available := make([]string, 0, len(variants))
	for _, row := range variants {
		available = append(available, row.ColorName)
	}
	return nil, &VariantNotFoundError{ProductID: product.ID, Color: color, Available: available}
}

// ResolveCell resolve o tamanho dentro da variante escolhida.
// Na reserva, tamanho ausente é erro com a lista de tamanhos disponíveis na cor;
// no retorno, a célula é criada com o tamanho informado.
func ResolveCell(productID int, resolved *VariantResolution, cells []StockCell, size, direction string) (*CellResolution, error) {
	sizeKey := normalizeKey(size)

	for _, cell := range cells {
		if cell.ColorKey == resolved.ColorKey && cell.SizeKey == sizeKey {
			return &CellResolution{SizeKey: cell.SizeKey, SizeLabel: cell.SizeLabel, Step: ResolutionExact}, nil
		}
	}

	if direction == DirectionRestore {
		log.Printf("ℹ️ [RESOLUÇÃO] criando tamanho %q na variante %q do produto %d", size, resolved.ColorName, productID)
		return &CellResolution{SizeKey: sizeKey, SizeLabel: size, Step: ResolutionCreated}, nil
	}

	available := make([]string, 0)
	for _, cell := range cells {
		if cell.ColorKey == resolved.ColorKey {
			available = append(available, cell.SizeLabel)
		}
	}
	return nil, &SizeNotFoundError{ProductID: productID, Color: resolved.ColorName, Size: size, Available: available}
}
