// cmd/titan-nvr/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sua-org/titan-nvr/internal/cloudsync"
	"github.com/sua-org/titan-nvr/internal/coordinator"
	"github.com/sua-org/titan-nvr/internal/frigate"
	"github.com/sua-org/titan-nvr/internal/go2rtc"
	"github.com/sua-org/titan-nvr/internal/mqttclient"
	"github.com/sua-org/titan-nvr/internal/notify"
	"github.com/sua-org/titan-nvr/internal/schedule"
	"github.com/sua-org/titan-nvr/internal/store"
	"github.com/sua-org/titan-nvr/internal/streamsync"
	"github.com/sua-org/titan-nvr/internal/task"
)

func main() {
	// Carrega .env na raiz (se não existir, só loga aviso)
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] aviso: não foi possível carregar .env: %v", err)
	}

	dbPath := getenv("DATABASE_PATH", "./storage/titannvr.db")
	cameraStore, err := store.OpenSQLite(dbPath)
	if err != nil {
		log.Fatalf("erro ao abrir o banco de câmeras: %v", err)
	}
	defer cameraStore.Close()

	relay := go2rtc.NewClientFromEnv()
	streams := streamsync.NewEngine(relay)
	reconciler := frigate.NewReconcilerFromEnv()
	coord := coordinator.New(cameraStore, streams, reconciler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MQTT é opcional: sem broker, seguimos sem publicar status.
	var mqttCli *mqttclient.Client
	if getenv("MQTT_ENABLED", "true") == "true" {
		mqttCli, err = mqttclient.NewClientFromEnv("titan-nvr")
		if err != nil {
			log.Printf("[main] aviso: MQTT não inicializado: %v", err)
		}
	}
	if mqttCli != nil {
		defer mqttCli.Close()
		publisher := notify.NewPublisherFromEnv(mqttCli, streams, cameraStore)
		coord.SetReportHook(publisher.PublishReport)
		go publisher.RunStatusLoop(ctx)
	}

	// Convergência de startup: relay/frigate podem ter reiniciado e
	// perdido estado enquanto o backend estava fora.
	if relay.Ping(ctx) {
		coord.SyncAll(ctx)
	} else {
		log.Printf("[main] aviso: go2rtc indisponível, pulando sync inicial")
	}

	// Scheduler de gravação: resolve os slots e reconcilia em lote.
	scheduler := schedule.New(cameraStore)
	tickInterval := envSeconds("SCHEDULE_INTERVAL_SECONDS", 60*time.Second)
	scheduleRunner := task.NewRunner("schedule", tickInterval, func(ctx context.Context) error {
		changed, err := scheduler.Tick(ctx, time.Now())
		if err != nil {
			return err
		}
		coord.OnScheduleTick(ctx, changed)
		return nil
	})
	scheduleRunner.Start(ctx)
	defer scheduleRunner.Stop()

	// Backup de gravações pra nuvem (opcional; se falhar, segue sem)
	if syncer, err := cloudsync.NewSyncerFromEnv(); err != nil {
		log.Printf("[main] aviso: cloud sync não inicializado: %v", err)
	} else {
		interval := envSeconds("CLOUD_SYNC_INTERVAL_SECONDS", time.Hour)
		cloudRunner := task.NewRunner("cloudsync", interval, func(ctx context.Context) error {
			_, err := syncer.SyncRecordings(ctx)
			return err
		})
		cloudRunner.Start(ctx)
		defer cloudRunner.Stop()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("[main] sinal recebido, encerrando...")
	cancel()
	time.Sleep(1 * time.Second)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		log.Printf("[main] valor inválido em %s=%q, usando default %s", key, v, def)
		return def
	}
	return time.Duration(sec) * time.Second
}
