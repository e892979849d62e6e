package main

import (
	"context"
	"log"
	"sync"
	"time"
)

// MovementLogger é o canal lateral de auditoria do ledger: fire-and-forget.
// As linhas entram num buffer e são gravadas por uma goroutine de fundo;
// buffer cheio ou falha de escrita são logados e descartados, nunca
// propagados ao caller do ajuste de estoque.
type MovementLogger struct {
	repository EstoqueRepository
	queue      chan StockMovement
	done       chan struct{}
	wg         sync.WaitGroup
	timeout    time.Duration
}

// NewMovementLogger cria um novo MovementLogger com o buffer informado
func NewMovementLogger(repository EstoqueRepository, bufferSize int) *MovementLogger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &MovementLogger{
		repository: repository,
		queue:      make(chan StockMovement, bufferSize),
		done:       make(chan struct{}),
		timeout:    5 * time.Second,
	}
}

// Start inicia a goroutine que drena o buffer
func (l *MovementLogger) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case movement := <-l.queue:
				l.write(movement)
			case <-l.done:
				// drena o que restou antes de encerrar
				for {
					select {
					case movement := <-l.queue:
						l.write(movement)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop encerra o logger drenando o buffer pendente
func (l *MovementLogger) Stop() {
	close(l.done)
	l.wg.Wait()
}

// Enqueue registra a movimentação sem bloquear; com o buffer cheio, descarta e loga
func (l *MovementLogger) Enqueue(movement StockMovement) {
	select {
	case l.queue <- movement:
	default:
		log.Printf("ℹ️ [MOVIMENTAÇÃO] buffer cheio, descartando registro | ProductID=%d tipo=%s qtd=%d",
			movement.ProductID, movement.MovementType, movement.Quantity)
	}
}

func (l *MovementLogger) write(movement StockMovement) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.repository.InsertMovement(ctx, movement); err != nil {
		log.Printf("ℹ️ [MOVIMENTAÇÃO] falha ao gravar registro (ignorada) | ProductID=%d tipo=%s: %v",
			movement.ProductID, movement.MovementType, err)
	}
}
