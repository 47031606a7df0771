// internal/streamsync/engine.go
package streamsync

import (
	"context"
	"fmt"

	"github.com/sua-org/titan-nvr/internal/core"
	"github.com/sua-org/titan-nvr/internal/go2rtc"
)

// Engine sincroniza streams de câmera com o relay. Cada câmera vira dois
// alvos (main/sub) e cada alvo sofre dois efeitos independentes:
// hot-reload via API e escrita na config durável. A falha de um efeito
// não aborta o outro nem o registro como um todo.
//
// Não há exclusão mútua por câmera aqui dentro: chamadas concorrentes de
// register/unregister para o mesmo nome precisam ser serializadas por
// quem chama (o coordinator mantém um mutex por id normalizado).
type Engine struct {
	relay *go2rtc.Client
}

func NewEngine(relay *go2rtc.Client) *Engine {
	return &Engine{relay: relay}
}

// BuildTargets deriva os dois StreamTargets de uma câmera. Valida os
// esquemas antes de qualquer rede: URL não suportada é erro aqui.
func BuildTargets(name, mainURL, subURL string) ([]core.StreamTarget, error) {
	if subURL == "" {
		subURL = mainURL
	}

	mainSource, err := convertSourceURL(mainURL, core.TierMain)
	if err != nil {
		return nil, err
	}
	subSource, err := convertSourceURL(subURL, core.TierSub)
	if err != nil {
		return nil, err
	}

	return []core.StreamTarget{
		{ID: core.TargetID(name, core.TierMain), Tier: core.TierMain, SourceURL: mainSource, State: core.TargetPending},
		{ID: core.TargetID(name, core.TierSub), Tier: core.TierSub, SourceURL: subSource, State: core.TargetPending},
	}, nil
}

// RegisterCamera registra os dois tiers da câmera no relay.
// O erro retornado é só de validação (antes de rede); falhas de rede
// viram estado por alvo dentro do report.
func (e *Engine) RegisterCamera(ctx context.Context, name, mainURL, subURL string) (core.ReconciliationReport, error) {
	report := core.ReconciliationReport{Camera: name, Operation: "register"}

	targets, err := BuildTargets(name, mainURL, subURL)
	if err != nil {
		return report, err
	}

	for _, target := range targets {
		tr := core.TargetReport{TargetID: target.ID, Tier: target.Tier, State: core.TargetPending}

		// Efeito 1: hot-reload imediato.
		tr.HotReload = e.relay.AddStream(ctx, target.ID, target.SourceURL)
		if tr.HotReload == nil {
			tr.State = core.TargetActive
		} else {
			tr.State = core.TargetFailed
		}

		// Efeito 2: config durável, para o stream sobreviver a restart
		// do relay. Independente do efeito 1.
		tr.Persist = e.persistStream(ctx, target.ID, target.SourceURL)

		report.Targets = append(report.Targets, tr)
	}

	return report, nil
}

// UnregisterCamera remove os dois tiers da câmera, do hot-reload e da
// config durável. Alvo ausente conta como sucesso.
func (e *Engine) UnregisterCamera(ctx context.Context, name string) core.ReconciliationReport {
	report := core.ReconciliationReport{Camera: name, Operation: "unregister"}

	ids := []struct {
		id   string
		tier core.StreamTier
	}{
		{core.TargetID(name, core.TierMain), core.TierMain},
		{core.TargetID(name, core.TierSub), core.TierSub},
	}

	for _, t := range ids {
		tr := core.TargetReport{TargetID: t.id, Tier: t.tier, State: core.TargetUnregistered}
		tr.HotReload = e.relay.RemoveStream(ctx, t.id)
		tr.Persist = e.removePersistedStream(ctx, t.id)
		if tr.Failed() {
			tr.State = core.TargetFailed
		}
		report.Targets = append(report.Targets, tr)
	}

	return report
}

func (e *Engine) persistStream(ctx context.Context, id, sourceURL string) error {
	cfg, err := e.relay.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("read relay config: %w", err)
	}
	if cfg.Streams[id] == sourceURL {
		return nil
	}
	cfg.Streams[id] = sourceURL
	if err := e.relay.PatchStreams(ctx, cfg.Streams); err != nil {
		return fmt.Errorf("persist stream %s: %w", id, err)
	}
	return nil
}

func (e *Engine) removePersistedStream(ctx context.Context, id string) error {
	cfg, err := e.relay.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("read relay config: %w", err)
	}
	if _, ok := cfg.Streams[id]; !ok {
		return nil
	}
	delete(cfg.Streams, id)
	if err := e.relay.PatchStreams(ctx, cfg.Streams); err != nil {
		return fmt.Errorf("remove persisted stream %s: %w", id, err)
	}
	return nil
}

// StreamStatus é o estado observado de um stream no catálogo do relay.
type StreamStatus string

const (
	StatusOnline     StreamStatus = "online"
	StatusConnecting StreamStatus = "connecting"
	StatusOffline    StreamStatus = "offline"
	StatusUnknown    StreamStatus = "unknown"
)

// StatusProbe consulta o catálogo do relay e classifica a câmera.
// Usa o tier sub (é o que o grid consome). unknown = relay fora do ar.
func (e *Engine) StatusProbe(ctx context.Context, name string) (StreamStatus, string) {
	id := core.TargetID(name, core.TierSub)

	streams, err := e.relay.Streams(ctx)
	if err != nil {
		return StatusUnknown, err.Error()
	}

	stream, ok := streams[id]
	if !ok {
		return StatusOffline, "stream não registrado"
	}
	if len(stream.Producers) == 0 {
		return StatusOffline, "sem producers"
	}
	for _, p := range stream.Producers {
		if p.Recv > 0 {
			return StatusOnline, fmt.Sprintf("recebendo dados (%d bytes)", p.Recv)
		}
	}
	return StatusConnecting, "aguardando dados"
}

// PlaybackURLs monta as URLs de consumo (WebRTC/MSE/HLS/MJPEG) por tier.
func (e *Engine) PlaybackURLs(name string) map[core.StreamTier]map[string]string {
	out := make(map[core.StreamTier]map[string]string, 2)
	for _, tier := range []core.StreamTier{core.TierMain, core.TierSub} {
		id := core.TargetID(name, tier)
		out[tier] = map[string]string{
			"webrtc": fmt.Sprintf("%s/api/webrtc?src=%s", e.relay.BaseURL(), id),
			"mse":    fmt.Sprintf("%s/api/stream.mp4?src=%s", e.relay.BaseURL(), id),
			"hls":    fmt.Sprintf("%s/api/stream.m3u8?src=%s", e.relay.BaseURL(), id),
			"mjpeg":  fmt.Sprintf("%s/api/frame.jpeg?src=%s", e.relay.BaseURL(), id),
		}
	}
	return out
}
