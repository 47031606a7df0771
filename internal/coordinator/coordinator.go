// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"log"
	"sync"

	"github.com/sua-org/titan-nvr/internal/core"
	"github.com/sua-org/titan-nvr/internal/frigate"
	"github.com/sua-org/titan-nvr/internal/store"
	"github.com/sua-org/titan-nvr/internal/streamsync"
)

// Coordinator amarra os eventos de CRUD e os ticks de agenda às duas
// reconciliações: stream sync por câmera afetada, detection config UMA
// vez por lote. Reconciliação é best-effort: falha degrada
// disponibilidade observável, nunca bloqueia nem desfaz a operação no
// store.
type Coordinator struct {
	store   store.Store
	streams *streamsync.Engine
	frigate *frigate.Reconciler

	// Serializa register/unregister concorrentes para o mesmo id
	// normalizado (nenhum lock atravessa os dois sistemas externos).
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	reportHook func(core.ReconciliationReport)
}

func New(st store.Store, streams *streamsync.Engine, rec *frigate.Reconciler) *Coordinator {
	return &Coordinator{
		store:   st,
		streams: streams,
		frigate: rec,
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetReportHook registra um callback para cada report de stream sync
// (o notifier publica em MQTT). Opcional.
func (c *Coordinator) SetReportHook(hook func(core.ReconciliationReport)) {
	c.reportHook = hook
}

func (c *Coordinator) lockStream(name string) func() {
	key := core.NormalizeName(name)

	c.locksMu.Lock()
	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	c.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

func (c *Coordinator) emit(report core.ReconciliationReport) {
	for _, t := range report.Targets {
		if t.HotReload != nil {
			log.Printf("[coordinator] %s %s: hot-reload falhou: %v", report.Operation, t.TargetID, t.HotReload)
		}
		if t.Persist != nil {
			log.Printf("[coordinator] %s %s: config durável falhou: %v", report.Operation, t.TargetID, t.Persist)
		}
	}
	if c.reportHook != nil {
		c.reportHook(report)
	}
}

func (c *Coordinator) registerCamera(ctx context.Context, cam core.CameraRecord) {
	unlock := c.lockStream(cam.Name)
	defer unlock()

	report, err := c.streams.RegisterCamera(ctx, cam.Name, cam.MainStreamURL, cam.SubStreamURL)
	if err != nil {
		log.Printf("[coordinator] câmera %s rejeitada pelo stream sync: %v", cam.Name, err)
		return
	}
	c.emit(report)
}

func (c *Coordinator) unregisterCamera(ctx context.Context, name string) {
	unlock := c.lockStream(name)
	defer unlock()

	c.emit(c.streams.UnregisterCamera(ctx, name))
}

// OnCameraCreated: registra os streams e reconcilia o detection engine.
func (c *Coordinator) OnCameraCreated(ctx context.Context, cam core.CameraRecord) {
	c.registerCamera(ctx, cam)
	c.applyDetectionConfig(ctx)
}

// OnCameraUpdated re-sincroniza streams só quando nome ou URLs mudaram.
// Rename não é atômico no relay: registramos o id novo primeiro e só
// depois removemos o antigo, para a câmera continuar alcançável por
// pelo menos um id se algo falhar no meio.
func (c *Coordinator) OnCameraUpdated(ctx context.Context, old, cam core.CameraRecord) {
	renamed := core.NormalizeName(old.Name) != core.NormalizeName(cam.Name)
	urlsChanged := old.MainStreamURL != cam.MainStreamURL || old.SubStreamURL != cam.SubStreamURL

	if renamed || urlsChanged {
		c.registerCamera(ctx, cam)
		if renamed {
			c.unregisterCamera(ctx, old.Name)
		}
	}

	c.applyDetectionConfig(ctx)
}

// OnCameraDeleted: remove os streams e reconcilia o detection engine.
// O registro já saiu do store; nada aqui desfaz isso.
func (c *Coordinator) OnCameraDeleted(ctx context.Context, cam core.CameraRecord) {
	c.unregisterCamera(ctx, cam.Name)
	c.applyDetectionConfig(ctx)
}

// OnBulkCreate registra cada câmera no relay mas dispara UM Apply para
// o lote inteiro: cada Apply implica um restart disruptivo do detection
// engine.
func (c *Coordinator) OnBulkCreate(ctx context.Context, cams []core.CameraRecord) {
	for _, cam := range cams {
		c.registerCamera(ctx, cam)
	}
	c.applyDetectionConfig(ctx)
}

func (c *Coordinator) OnBulkDelete(ctx context.Context, cams []core.CameraRecord) {
	for _, cam := range cams {
		c.unregisterCamera(ctx, cam.Name)
	}
	c.applyDetectionConfig(ctx)
}

// OnScheduleTick recebe o change-set do schedule engine. Os streams não
// mudam (URLs e nomes são os mesmos); só o detection engine precisa
// convergir, uma vez para o lote.
func (c *Coordinator) OnScheduleTick(ctx context.Context, changed []core.CameraRecord) {
	if len(changed) == 0 {
		return
	}
	c.applyDetectionConfig(ctx)
}

// SyncAll é a convergência de startup: garante que o relay e o detection
// engine conhecem todas as câmeras ativas (caso algum deles tenha
// reiniciado e perdido estado).
func (c *Coordinator) SyncAll(ctx context.Context) {
	cameras, err := c.store.ListActive(ctx)
	if err != nil {
		log.Printf("[coordinator] sync inicial: erro ao listar câmeras: %v", err)
		return
	}

	log.Printf("[coordinator] sync inicial de %d câmeras", len(cameras))
	for _, cam := range cameras {
		c.registerCamera(ctx, cam)
	}
	c.applyDetectionConfig(ctx)
}

// applyDetectionConfig reconcilia o Frigate com o conjunto completo do
// store. Erros degradam e são logados; nunca propagam para o CRUD.
func (c *Coordinator) applyDetectionConfig(ctx context.Context) {
	cameras, err := c.store.ListCameras(ctx)
	if err != nil {
		log.Printf("[coordinator] erro ao listar câmeras para o frigate: %v", err)
		return
	}

	result, err := c.frigate.Apply(ctx, cameras)
	if err != nil {
		log.Printf("[coordinator] erro ao aplicar config do frigate: %v", err)
		return
	}
	if result.RestartErr != nil {
		log.Printf("[coordinator] frigate config aplicada (%d câmeras) mas restart degradado (%s): %v",
			result.CamerasConfigured, result.Restart, result.RestartErr)
		return
	}
	log.Printf("[coordinator] frigate sincronizado: %d câmeras", result.CamerasConfigured)
}
