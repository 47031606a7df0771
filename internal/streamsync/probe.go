// internal/streamsync/probe.go
package streamsync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sua-org/titan-nvr/internal/core"
	"github.com/sua-org/titan-nvr/internal/go2rtc"
)

// ProbeReason distingue os motivos de falha do teste de conexão.
type ProbeReason string

const (
	ReasonNone           ProbeReason = ""
	ReasonRegisterFailed ProbeReason = "register_failed"
	ReasonUnreachable    ProbeReason = "relay_unreachable"
	ReasonNotFound       ProbeReason = "stream_not_found"
	ReasonNoProducers    ProbeReason = "no_producers"
	ReasonNoData         ProbeReason = "no_data"
)

// ProbeResult é o resultado do TestConnection. Nunca é persistido.
type ProbeResult struct {
	Success   bool
	Reason    ProbeReason
	Detail    string
	RecvBytes int64
}

// TestConnection valida uma URL de stream registrando um id efêmero no
// relay pela config durável (nunca pelo caminho de CRUD), esperando o
// relay tentar conectar e relendo o catálogo.
//
// O id efêmero é removido antes do retorno em TODO caminho de saída,
// inclusive pânico no meio do teste. Falha na limpeza só gera log:
// nunca muda o resultado reportado.
func (e *Engine) TestConnection(ctx context.Context, streamURL string, timeout time.Duration) (ProbeResult, error) {
	// Valida o esquema antes de qualquer chamada de rede. O registro em
	// si usa a URL crua: o relay é quem tenta conectar.
	if _, err := convertSourceURL(streamURL, core.TierMain); err != nil {
		return ProbeResult{}, err
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	tempID := "probe_temp_" + uuid.NewString()[:8]
	log.Printf("[probe] testando stream %s (temp_id=%s)", streamURL, tempID)

	registered := false
	defer func() {
		if !registered {
			return
		}
		if err := e.removePersistedStream(context.Background(), tempID); err != nil {
			// ProbeLeakError: só loga, o resultado do teste já está decidido.
			log.Printf("[probe] falha ao limpar stream efêmero %s: %v", tempID, err)
		}
	}()

	// Registro pelo caminho durável apenas.
	if err := e.persistStream(ctx, tempID, streamURL); err != nil {
		if go2rtc.IsUnreachable(err) {
			return ProbeResult{Reason: ReasonUnreachable, Detail: err.Error()}, nil
		}
		return ProbeResult{Reason: ReasonRegisterFailed, Detail: err.Error()}, nil
	}
	registered = true

	// Dá tempo pro relay tentar conectar na fonte.
	select {
	case <-time.After(timeout):
	case <-ctx.Done():
		return ProbeResult{Reason: ReasonUnreachable, Detail: "teste cancelado: " + ctx.Err().Error()}, nil
	}

	streams, err := e.relay.Streams(ctx)
	if err != nil {
		return ProbeResult{Reason: ReasonUnreachable, Detail: err.Error()}, nil
	}

	stream, ok := streams[tempID]
	if !ok {
		return ProbeResult{Reason: ReasonNotFound, Detail: "stream não apareceu no catálogo após registro"}, nil
	}
	if len(stream.Producers) == 0 {
		return ProbeResult{Reason: ReasonNoProducers, Detail: "nenhum producer: URL incorreta ou host inacessível"}, nil
	}
	for _, p := range stream.Producers {
		if p.Recv > 0 {
			log.Printf("[probe] teste ok: %s recebendo %d bytes", tempID, p.Recv)
			return ProbeResult{
				Success:   true,
				Detail:    fmt.Sprintf("conexão ok, recebendo dados (%d bytes)", p.Recv),
				RecvBytes: p.Recv,
			}, nil
		}
	}
	// Producer existe mas zero bytes: normalmente autenticação errada
	// ou stream parado na origem.
	return ProbeResult{Reason: ReasonNoData, Detail: "conectado mas sem dados: possível problema de autenticação"}, nil
}
