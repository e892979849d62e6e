package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// movementSink acumula inserções de movimentação com controle de erro
type movementSink struct {
	fakeRepository
	mu        sync.Mutex
	inserted  []StockMovement
	insertErr error
}

func (s *movementSink) InsertMovement(ctx context.Context, movement StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, movement)
	return nil
}

func (s *movementSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func TestMovementLoggerWritesEnqueued(t *testing.T) {
	sink := &movementSink{}
	logger := NewMovementLogger(sink, 8)
	logger.Start()

	logger.Enqueue(NewStockMovement(10, 2, MovementTypeSaidaReserva, "reserva"))
	logger.Enqueue(NewStockMovement(10, 2, MovementTypeRetornoReserva, "retorno"))

	logger.Stop() // drena o buffer pendente

	assert.Equal(t, 2, sink.count())
	assert.Equal(t, MovementTypeSaidaReserva, sink.inserted[0].MovementType)
	assert.Equal(t, MovementTypeRetornoReserva, sink.inserted[1].MovementType)
}

func TestMovementLoggerInsertFailureIsSwallowed(t *testing.T) {
	sink := &movementSink{insertErr: errors.New("connection refused")}
	logger := NewMovementLogger(sink, 8)
	logger.Start()

	// não deve panicar nem bloquear
	logger.Enqueue(NewStockMovement(10, 1, MovementTypeVenda, "venda"))
	logger.Stop()

	assert.Equal(t, 0, sink.count())
}

func TestMovementLoggerFullBufferDoesNotBlock(t *testing.T) {
	sink := &movementSink{}
	logger := NewMovementLogger(sink, 1)
	// logger não iniciado: o buffer enche e os excedentes são descartados

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			logger.Enqueue(NewStockMovement(10, 1, MovementTypeAjusteManual, "ajuste"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on full buffer")
	}

	assert.Len(t, logger.queue, 1)
}
