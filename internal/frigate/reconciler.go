// internal/frigate/reconciler.go
package frigate

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sua-org/titan-nvr/internal/core"
)

// RestartStatus classifica o resultado do pedido de restart.
type RestartStatus string

const (
	RestartOK          RestartStatus = "ok"
	RestartDegraded    RestartStatus = "degraded"
	RestartUnavailable RestartStatus = "unavailable"
)

// ApplyResult reporta um Apply. A escrita e o restart são independentes:
// falha de restart degrada o status mas nunca desfaz a escrita durável.
type ApplyResult struct {
	CamerasConfigured int
	ConfigPath        string
	Restart           RestartStatus
	RestartErr        error
}

// Reconciler escreve o documento declarativo do Frigate e pede restart.
//
// Contrato de batching: UMA chamada de Apply por operação lógica (um
// bulk create de N câmeras = um Apply), nunca por câmera. Cada Apply
// implica um restart disruptivo que afeta todos os streams ativos.
type Reconciler struct {
	configPath    string
	frigateURL    string
	relayRTSPBase string
	timezone      string
	httpClient    *http.Client
	now           func() time.Time

	mu sync.Mutex
}

// NewReconcilerFromEnv monta o reconciler a partir do ambiente:
// FRIGATE_CONFIG_PATH, FRIGATE_URL, GO2RTC_RTSP_URL e FRIGATE_TIMEZONE.
func NewReconcilerFromEnv() *Reconciler {
	configPath := strings.TrimSpace(os.Getenv("FRIGATE_CONFIG_PATH"))
	if configPath == "" {
		configPath = "/config/frigate.yml"
	}
	frigateURL := strings.TrimSpace(os.Getenv("FRIGATE_URL"))
	if frigateURL == "" {
		frigateURL = "http://frigate:5000"
	}
	rtspBase := strings.TrimSpace(os.Getenv("GO2RTC_RTSP_URL"))
	if rtspBase == "" {
		rtspBase = "rtsp://go2rtc:8554"
	}
	return NewReconciler(configPath, frigateURL, rtspBase, os.Getenv("FRIGATE_TIMEZONE"))
}

func NewReconciler(configPath, frigateURL, relayRTSPBase, timezone string) *Reconciler {
	return &Reconciler{
		configPath:    configPath,
		frigateURL:    strings.TrimSuffix(frigateURL, "/"),
		relayRTSPBase: strings.TrimSuffix(relayRTSPBase, "/"),
		timezone:      timezone,
		// O restart do Frigate pode levar vários segundos.
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Generate gera o documento para o conjunto de câmeras dado.
func (r *Reconciler) Generate(cameras []core.CameraRecord) Config {
	return Generate(cameras, r.relayRTSPBase, r.timezone)
}

// Apply gera, escreve com replace atômico e pede restart. O erro
// retornado é fatal (geração/escrita); problema no restart vem dentro
// do resultado como status degradado.
func (r *Reconciler) Apply(ctx context.Context, cameras []core.CameraRecord) (ApplyResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.Generate(cameras)
	result := ApplyResult{
		CamerasConfigured: len(cfg.Cameras),
		ConfigPath:        r.configPath,
	}

	data, err := Encode(cfg, r.now())
	if err != nil {
		return result, err
	}

	if err := r.writeAtomic(data); err != nil {
		return result, err
	}
	log.Printf("[frigate] config escrita em %s (%d câmeras)", r.configPath, result.CamerasConfigured)

	result.Restart, result.RestartErr = r.restart(ctx)
	return result, nil
}

// writeAtomic escreve num arquivo temporário no mesmo diretório e
// renomeia por cima: nunca fica meio documento visível.
func (r *Reconciler) writeAtomic(data []byte) error {
	dir := filepath.Dir(r.configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".frigate-*.yml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write frigate config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath); err != nil {
		return fmt.Errorf("replace frigate config: %w", err)
	}
	return nil
}

func (r *Reconciler) restart(ctx context.Context) (RestartStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.frigateURL+"/api/restart", nil)
	if err != nil {
		return RestartDegraded, fmt.Errorf("create restart request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Frigate fora do ar não invalida a escrita: ao subir, lê a
		// config nova do disco.
		return RestartUnavailable, fmt.Errorf("frigate restart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RestartDegraded, fmt.Errorf("frigate restart: status %s", resp.Status)
	}
	return RestartOK, nil
}
