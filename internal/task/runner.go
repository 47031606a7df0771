// internal/task/runner.go
package task

import (
	"context"
	"log"
	"sync"
	"time"
)

// Runner executa uma função em intervalo fixo, com single-flight: uma
// execução em andamento nunca é reentrada; disparo sobreposto é pulado.
// Expõe última execução e último erro para observabilidade.
type Runner struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error

	cancel context.CancelFunc
	done   chan struct{}
}

// Status é um snapshot observável do runner.
type Status struct {
	Name    string
	Running bool
	LastRun time.Time
	LastErr error
}

func NewRunner(name string, interval time.Duration, fn func(ctx context.Context) error) *Runner {
	return &Runner{name: name, interval: interval, fn: fn}
}

// Start sobe a goroutine do loop. Chamar Start duas vezes é no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.loop(ctx)
}

// Stop cancela o loop e espera a execução corrente terminar.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("[%s] loop iniciado (intervalo=%s)", r.name, r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] loop encerrado (context canceled)", r.name)
			return
		case <-ticker.C:
			r.Trigger(ctx)
		}
	}
}

// Trigger roda a função agora, respeitando o single-flight: se já tem
// execução em andamento, o disparo é pulado e retorna false.
func (r *Runner) Trigger(ctx context.Context) bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		log.Printf("[%s] execução anterior ainda em andamento, pulando tick", r.name)
		return false
	}
	r.running = true
	r.mu.Unlock()

	err := r.fn(ctx)

	r.mu.Lock()
	r.running = false
	r.lastRun = time.Now().UTC()
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		log.Printf("[%s] execução falhou: %v", r.name, err)
	}
	return true
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Name: r.name, Running: r.running, LastRun: r.lastRun, LastErr: r.lastErr}
}
