// internal/notify/publisher.go
package notify

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sua-org/titan-nvr/internal/core"
	"github.com/sua-org/titan-nvr/internal/mqttclient"
	"github.com/sua-org/titan-nvr/internal/streamsync"
)

// CameraStatus é o payload publicado por câmera.
type CameraStatus struct {
	CameraID   int64  `json:"camera_id"`
	CameraName string `json:"camera_name"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	IsActive   bool   `json:"is_active"`
	Timestamp  string `json:"timestamp"`
}

type backendStatus struct {
	Service        string  `json:"service"`
	Status         string  `json:"status"`
	Hostname       string  `json:"hostname"`
	Cameras        int     `json:"cameras"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
	Timestamp      string  `json:"timestamp"`
}

// CameraLister é o pedaço do store que o publisher precisa.
type CameraLister interface {
	ListCameras(ctx context.Context) ([]core.CameraRecord, error)
}

// Publisher publica status das câmeras e do backend em MQTT, mais os
// reports de reconciliação conforme o coordinator os emite.
type Publisher struct {
	mqtt      *mqttclient.Client
	baseTopic string
	streams   *streamsync.Engine
	cameras   CameraLister
	interval  time.Duration
	proc      *process.Process
}

func NewPublisherFromEnv(cli *mqttclient.Client, streams *streamsync.Engine, cameras CameraLister) *Publisher {
	baseTopic := strings.TrimSuffix(getenv("MQTT_BASE_TOPIC", "titan-nvr"), "/")
	interval := envDurationSeconds("STATUS_INTERVAL_SECONDS", 30*time.Second)

	var procHandle *process.Process
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		procHandle = p
	}

	return &Publisher{
		mqtt:      cli,
		baseTopic: baseTopic,
		streams:   streams,
		cameras:   cameras,
		interval:  interval,
		proc:      procHandle,
	}
}

// PublishReport publica o resultado de um register/unregister.
// Implementa o hook do coordinator.
func (p *Publisher) PublishReport(report core.ReconciliationReport) {
	type targetPayload struct {
		TargetID  string `json:"target_id"`
		Tier      string `json:"tier"`
		State     string `json:"state"`
		HotReload string `json:"hot_reload_error,omitempty"`
		Persist   string `json:"persist_error,omitempty"`
	}
	payload := struct {
		Camera    string          `json:"camera"`
		Operation string          `json:"operation"`
		OK        bool            `json:"ok"`
		Targets   []targetPayload `json:"targets"`
		Timestamp string          `json:"timestamp"`
	}{
		Camera:    report.Camera,
		Operation: report.Operation,
		OK:        report.AllOK(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, t := range report.Targets {
		tp := targetPayload{TargetID: t.TargetID, Tier: string(t.Tier), State: string(t.State)}
		if t.HotReload != nil {
			tp.HotReload = t.HotReload.Error()
		}
		if t.Persist != nil {
			tp.Persist = t.Persist.Error()
		}
		payload.Targets = append(payload.Targets, tp)
	}

	topic := p.baseTopic + "/sync/" + core.NormalizeName(report.Camera) + "/report"
	if err := p.mqtt.PublishJSON(topic, 1, false, payload); err != nil {
		log.Printf("[notify] erro ao publicar report em %s: %v", topic, err)
	}
}

// RunStatusLoop publica status periodicamente até o contexto cancelar.
func (p *Publisher) RunStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	hostname, _ := os.Hostname()
	log.Printf("[notify] status loop iniciado (intervalo=%s)", p.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[notify] status loop encerrado (context canceled)")
			return
		case t := <-ticker.C:
			p.publishStatuses(ctx, hostname, t)
		}
	}
}

func (p *Publisher) publishStatuses(ctx context.Context, hostname string, now time.Time) {
	cameras, err := p.cameras.ListCameras(ctx)
	if err != nil {
		log.Printf("[notify] erro ao listar câmeras: %v", err)
		return
	}

	for _, cam := range cameras {
		status, detail := p.streams.StatusProbe(ctx, cam.Name)
		payload := CameraStatus{
			CameraID:   cam.ID,
			CameraName: cam.Name,
			Status:     string(status),
			Detail:     detail,
			IsActive:   cam.IsActive,
			Timestamp:  now.UTC().Format(time.RFC3339),
		}
		topic := p.baseTopic + "/cameras/" + core.NormalizeName(cam.Name) + "/status"
		if err := p.mqtt.PublishJSON(topic, 1, true, payload); err != nil {
			log.Printf("[notify] erro ao publicar status de %s: %v", cam.Name, err)
		}
	}

	p.publishBackendStatus(hostname, len(cameras), now)
}

func (p *Publisher) publishBackendStatus(hostname string, cameras int, now time.Time) {
	var (
		cpuPercent  float64
		memPercent  float64
		memRSSBytes uint64
	)
	if p.proc != nil {
		if cpu, err := p.proc.CPUPercent(); err == nil {
			cpuPercent = cpu
		}
		if memInfo, err := p.proc.MemoryInfo(); err == nil {
			memRSSBytes = memInfo.RSS
		}
		if memP, err := p.proc.MemoryPercent(); err == nil {
			memPercent = float64(memP)
		}
	}

	payload := backendStatus{
		Service:        "titan-nvr",
		Status:         "online",
		Hostname:       hostname,
		Cameras:        cameras,
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		MemoryRSSBytes: memRSSBytes,
		Timestamp:      now.UTC().Format(time.RFC3339),
	}

	topic := p.baseTopic + "/backend/status"
	if err := p.mqtt.PublishJSON(topic, 1, true, payload); err != nil {
		log.Printf("[notify] erro ao publicar status do backend: %v", err)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDurationSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		log.Printf("[notify] valor inválido em %s=%q, usando default %s", key, v, def)
		return def
	}
	return time.Duration(sec) * time.Second
}
