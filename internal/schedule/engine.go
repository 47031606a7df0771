// internal/schedule/engine.go
package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sua-org/titan-nvr/internal/core"
)

// CameraSource é o que o engine precisa do store: listar câmeras ativas
// e gravar o recording mode resolvido.
type CameraSource interface {
	ListActive(ctx context.Context) ([]core.CameraRecord, error)
	SetRecordingMode(ctx context.Context, id int64, mode core.RecordingMode) error
}

// Engine resolve, por câmera, qual slot de agenda governa "agora" e
// aplica o modo no store. As escritas são idempotentes: modo resolvido
// igual ao armazenado não gera escrita.
type Engine struct {
	source CameraSource
}

func New(source CameraSource) *Engine {
	return &Engine{source: source}
}

// Weekday converte o weekday do Go (domingo=0) para a convenção dos
// slots (segunda=0 ... domingo=6).
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ResolveMode procura o slot que governa (day, t). Regras:
//   - mesmo dia: start <= t <= end
//   - overnight (start > end): t >= start OU t <= end
//   - múltiplos matches: vence o primeiro na ordem armazenada
//   - depois da meia-noite, a cauda de um slot overnight do dia ANTERIOR
//     ainda governa, mas só quando nenhum slot do dia corrente casou
//
// Sem match = (_, false): slots são restrições aditivas, não cobertura
// exaustiva, e o modo da câmera fica como está.
func ResolveMode(slots []core.ScheduleSlot, day int, t core.MinuteOfDay) (core.RecordingMode, bool) {
	for _, slot := range slots {
		if slot.DayOfWeek != day {
			continue
		}
		if slotMatches(slot, t) {
			return slot.Mode, true
		}
	}

	// Cauda overnight do dia anterior (ex.: slot de sexta 22:00-06:00
	// ainda vale sábado 03:00).
	prevDay := (day + 6) % 7
	for _, slot := range slots {
		if slot.DayOfWeek != prevDay || !slot.Overnight() {
			continue
		}
		if t <= slot.End {
			return slot.Mode, true
		}
	}

	return "", false
}

func slotMatches(slot core.ScheduleSlot, t core.MinuteOfDay) bool {
	if slot.Overnight() {
		return t >= slot.Start || t <= slot.End
	}
	return slot.Start <= t && t <= slot.End
}

// Tick resolve a agenda de todas as câmeras ativas em `now` e devolve o
// change-set (câmeras cujo modo mudou). Quem chama (o coordinator)
// dispara UMA reconciliação do detection engine para o lote inteiro,
// nunca uma por câmera.
func (e *Engine) Tick(ctx context.Context, now time.Time) ([]core.CameraRecord, error) {
	cameras, err := e.source.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active cameras: %w", err)
	}

	day := Weekday(now)
	minute := core.MinuteOf(now)

	var changed []core.CameraRecord
	for _, cam := range cameras {
		if len(cam.Schedule) == 0 {
			continue
		}

		mode, ok := ResolveMode(cam.Schedule, day, minute)
		if !ok || mode == cam.RecordingMode {
			continue
		}

		if err := e.source.SetRecordingMode(ctx, cam.ID, mode); err != nil {
			log.Printf("[schedule] falha ao aplicar modo %s na câmera %s: %v", mode, cam.Name, err)
			continue
		}

		log.Printf("[schedule] câmera %s: %s -> %s", cam.Name, cam.RecordingMode, mode)
		cam.RecordingMode = mode
		changed = append(changed, cam)
	}

	return changed, nil
}
