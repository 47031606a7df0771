// internal/cloudsync/syncer.go
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrSyncInProgress: já tem um sync rodando; o disparo é pulado, não
// enfileirado.
var ErrSyncInProgress = errors.New("cloud sync already in progress")

// Stats de uma passada de sync.
type Stats struct {
	Uploaded     int
	Skipped      int
	Failed       int
	BytesShipped int64
}

// Status é o snapshot observável do syncer.
type Status struct {
	IsSyncing bool
	LastSync  time.Time
	LastErr   error
	LastStats Stats
}

// Syncer copia gravações novas do disco para um bucket S3-compatível.
// Só copia, nunca apaga nada do bucket: a retenção na nuvem é problema
// do lifecycle do bucket.
type Syncer struct {
	client   *minio.Client
	bucket   string
	localDir string
	prefix   string

	mu        sync.Mutex
	syncing   bool
	lastSync  time.Time
	lastErr   error
	lastStats Stats
}

// NewSyncerFromEnv cria o syncer a partir do ambiente. MINIO_ACCESS_KEY
// e MINIO_SECRET_KEY são obrigatórios; sem eles o backup de nuvem fica
// desligado (quem chama decide seguir sem).
func NewSyncerFromEnv() (*Syncer, error) {
	endpoint := getenv("MINIO_ENDPOINT", "localhost:9000")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	bucket := getenv("MINIO_BUCKET", "titan-recordings")
	useSSL := getenv("MINIO_USE_SSL", "false") == "true"
	localDir := getenv("RECORDINGS_PATH", "/media/frigate/recordings")
	prefix := strings.Trim(getenv("CLOUD_SYNC_PREFIX", "TitanNVR"), "/")

	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY / MINIO_SECRET_KEY não configurados")
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("erro criando cliente MinIO: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Cria bucket se não existir
	err = cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := cli.BucketExists(ctx, bucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("erro criando/verificando bucket %s: %w", bucket, err)
		}
	}

	log.Printf("[cloudsync] conectado ao endpoint %s, bucket=%s", endpoint, bucket)

	return &Syncer{
		client:   cli,
		bucket:   bucket,
		localDir: localDir,
		prefix:   prefix,
	}, nil
}

// SyncRecordings sobe para o bucket os arquivos que ainda não existem
// lá (ou mudaram de tamanho). Single-flight: chamada concorrente recebe
// ErrSyncInProgress.
func (s *Syncer) SyncRecordings(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return Stats{}, ErrSyncInProgress
	}
	s.syncing = true
	s.mu.Unlock()

	stats, err := s.walkAndUpload(ctx)

	s.mu.Lock()
	s.syncing = false
	s.lastSync = time.Now().UTC()
	s.lastErr = err
	s.lastStats = stats
	s.mu.Unlock()

	return stats, err
}

func (s *Syncer) walkAndUpload(ctx context.Context) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(s.localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.localDir, path)
		if err != nil {
			return err
		}
		key := s.prefix + "/" + filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		// Já está no bucket com o mesmo tamanho? Pula.
		stat, statErr := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if statErr == nil && stat.Size == info.Size() {
			stats.Skipped++
			return nil
		}

		if _, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{}); err != nil {
			log.Printf("[cloudsync] falha ao subir %s: %v", key, err)
			stats.Failed++
			return nil
		}
		stats.Uploaded++
		stats.BytesShipped += info.Size()
		return nil
	})

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Diretório de gravações ainda não existe: nada a fazer.
			return stats, nil
		}
		return stats, fmt.Errorf("walk recordings: %w", err)
	}

	log.Printf("[cloudsync] sync completo: %d enviados, %d pulados, %d falhas",
		stats.Uploaded, stats.Skipped, stats.Failed)
	return stats, nil
}

func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{IsSyncing: s.syncing, LastSync: s.lastSync, LastErr: s.lastErr, LastStats: s.lastStats}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
