package main

import (
	"errors"
	"testing"
)

func threeColorProduct() (*Product, []VariantRow) {
	product := &Product{ID: 10, Name: "Vestido Midi", Color: "Preto"}
	variants := []VariantRow{
		{ProductID: 10, ColorKey: "preto", ColorName: "Preto"},
		{ProductID: 10, ColorKey: "azul", ColorName: "Azul"},
		{ProductID: 10, ColorKey: "vermelho", ColorName: "Vermelho"},
	}
	return product, variants
}

func TestResolveVariantExactMatch(t *testing.T) {
	product, variants := threeColorProduct()

	resolved, err := ResolveVariant(product, variants, "azul", DirectionReserve)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resolved.Step != ResolutionExact {
		t.Errorf("Expected step %s, got %s", ResolutionExact, resolved.Step)
	}
	if resolved.ColorKey != "azul" {
		t.Errorf("Expected colorKey azul, got %s", resolved.ColorKey)
	}
}

func TestResolveVariantCaseAndWhitespaceInsensitive(t *testing.T) {
	product := &Product{ID: 10, Color: ""}
	variants := []VariantRow{{ProductID: 10, ColorKey: "azul", ColorName: "azul"}}

	resolved, err := ResolveVariant(product, variants, " Azul ", DirectionReserve)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resolved.Step != ResolutionExact {
		t.Errorf("Expected exact match for \" Azul \" against \"azul\", got step %s", resolved.Step)
	}
}

func TestResolveVariantDefaultColorFallback(t *testing.T) {
	product, variants := threeColorProduct()

	resolved, err := ResolveVariant(product, variants, "Lilás", DirectionReserve)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resolved.Step != ResolutionDefaultColor {
		t.Errorf("Expected step %s, got %s", ResolutionDefaultColor, resolved.Step)
	}
	if resolved.ColorName != "Preto" {
		t.Errorf("Expected fallback to default color Preto, got %s", resolved.ColorName)
	}
}

func TestResolveVariantReserveNotFound(t *testing.T) {
	product := &Product{ID: 10, Color: "Amarelo"} // cor padrão sem variante correspondente
	variants := []VariantRow{
		{ProductID: 10, ColorKey: "preto", ColorName: "Preto"},
		{ProductID: 10, ColorKey: "azul", ColorName: "Azul"},
	}

	_, err := ResolveVariant(product, variants, "Verde", DirectionReserve)

	var notFound *VariantNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected VariantNotFoundError, got %v", err)
	}
	if len(notFound.Available) != 2 || notFound.Available[0] != "Preto" || notFound.Available[1] != "Azul" {
		t.Errorf("Expected available colors [Preto Azul], got %v", notFound.Available)
	}
}

func TestResolveVariantRestoreSoleVariant(t *testing.T) {
	product := &Product{ID: 12, Color: "Amarelo"}
	variants := []VariantRow{{ProductID: 12, ColorKey: "preto", ColorName: "Preto"}}

	resolved, err := ResolveVariant(product, variants, "Verde", DirectionRestore)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resolved.Step != ResolutionSoleVariant {
		t.Errorf("Expected step %s, got %s", ResolutionSoleVariant, resolved.Step)
	}
	if resolved.ColorKey != "preto" {
		t.Errorf("Expected sole variant preto, got %s", resolved.ColorKey)
	}
}

func TestResolveVariantRestoreCreates(t *testing.T) {
	// devolver estoque nunca falha por cor ausente
	product := &Product{ID: 11, Color: "Amarelo"}
	variants := []VariantRow{
		{ProductID: 11, ColorKey: "preto", ColorName: "Preto"},
		{ProductID: 11, ColorKey: "azul", ColorName: "Azul"},
	}

	resolved, err := ResolveVariant(product, variants, "Verde", DirectionRestore)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resolved.Step != ResolutionCreated {
		t.Errorf("Expected step %s, got %s", ResolutionCreated, resolved.Step)
	}
	if resolved.ColorKey != "verde" || resolved.ColorName != "Verde" {
		t.Errorf("Expected new variant Verde/verde, got %s/%s", resolved.ColorName, resolved.ColorKey)
	}
}

func TestResolveCellExactMatch(t *testing.T) {
	resolved := &VariantResolution{ColorKey: "preto", ColorName: "Preto", Step: ResolutionExact}
	cells := []StockCell{
		{ProductID: 10, ColorKey: "preto", SizeKey: "m", SizeLabel: "M", Quantity: 3},
		{ProductID: 10, ColorKey: "preto", SizeKey: "g", SizeLabel: "G", Quantity: 1},
	}

	cell, err := ResolveCell(10, resolved, cells, " m ", DirectionReserve)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cell.SizeKey != "m" || cell.Step != ResolutionExact {
		t.Errorf("Expected exact match on m, got %+v", cell)
	}
}

func TestResolveCellReserveNotFound(t *testing.T) {
	resolved := &VariantResolution{ColorKey: "preto", ColorName: "Preto", Step: ResolutionExact}
	cells := []StockCell{
		{ProductID: 10, ColorKey: "preto", SizeKey: "m", SizeLabel: "M", Quantity: 3},
		{ProductID: 10, ColorKey: "azul", SizeKey: "p", SizeLabel: "P", Quantity: 1},
	}

	_, err := ResolveCell(10, resolved, cells, "GG", DirectionReserve)

	var notFound *SizeNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected SizeNotFoundError, got %v", err)
	}
	// só os tamanhos da cor resolvida contam como disponíveis
	if len(notFound.Available) != 1 || notFound.Available[0] != "M" {
		t.Errorf("Expected available sizes [M], got %v", notFound.Available)
	}
}

func TestResolveCellRestoreCreates(t *testing.T) {
	resolved := &VariantResolution{ColorKey: "verde", ColorName: "Verde", Step: ResolutionCreated}

	cell, err := ResolveCell(11, resolved, nil, "P", DirectionRestore)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cell.Step != ResolutionCreated {
		t.Errorf("Expected step %s, got %s", ResolutionCreated, cell.Step)
	}
	if cell.SizeKey != "p" || cell.SizeLabel != "P" {
		t.Errorf("Expected new cell P/p, got %s/%s", cell.SizeLabel, cell.SizeKey)
	}
}
