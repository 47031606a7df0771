// internal/core/types.go
package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordingMode define a política de gravação de uma câmera.
type RecordingMode string

const (
	ModeContinuous RecordingMode = "continuous"
	ModeMotion     RecordingMode = "motion"
	ModeEvents     RecordingMode = "events"
	ModeNone       RecordingMode = "none"
)

func ParseRecordingMode(s string) (RecordingMode, error) {
	switch RecordingMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeContinuous:
		return ModeContinuous, nil
	case ModeMotion:
		return ModeMotion, nil
	case ModeEvents:
		return ModeEvents, nil
	case ModeNone:
		return ModeNone, nil
	}
	return "", fmt.Errorf("recording mode inválido: %q", s)
}

func (m RecordingMode) String() string { return string(m) }

func (m *RecordingMode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	mode, err := ParseRecordingMode(raw)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// MinuteOfDay é um horário de parede (wall clock) em minutos desde 00:00.
// No JSON vai como "HH:MM" para manter o wire format legível.
type MinuteOfDay int

func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	s = strings.TrimSpace(s)
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("horário inválido: %q (esperado HH:MM)", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("horário fora do intervalo: %q", s)
	}
	return MinuteOfDay(h*60 + m), nil
}

// MinuteOf extrai o horário de parede de um time.Time.
func MinuteOf(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MinuteOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseMinuteOfDay(raw)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ScheduleSlot é uma regra (dia, faixa de horário, modo).
// DayOfWeek: 0=segunda ... 6=domingo.
// End < Start indica uma faixa que atravessa a meia-noite (ex.: 22:00-06:00).
type ScheduleSlot struct {
	DayOfWeek int           `json:"day_of_week"`
	Start     MinuteOfDay   `json:"start_time"`
	End       MinuteOfDay   `json:"end_time"`
	Mode      RecordingMode `json:"mode"`
}

// Overnight indica que a faixa atravessa a meia-noite.
func (s ScheduleSlot) Overnight() bool { return s.Start > s.End }

// ZoneConfig é a configuração opaca de uma zona de detecção.
// O backend só repassa para o detection engine, não interpreta.
type ZoneConfig struct {
	Coordinates string   `json:"coordinates" yaml:"coordinates"`
	Objects     []string `json:"objects,omitempty" yaml:"objects,omitempty"`
}

// CameraRecord é o registro autoritativo de uma câmera no store.
type CameraRecord struct {
	ID                 int64                 `json:"id"`
	Name               string                `json:"name"`
	MainStreamURL      string                `json:"main_stream_url"`
	SubStreamURL       string                `json:"sub_stream_url,omitempty"`
	IsActive           bool                  `json:"is_active"`
	RecordingMode      RecordingMode         `json:"recording_mode"`
	RetentionDays      int                   `json:"retention_days"`
	EventRetentionDays int                   `json:"event_retention_days"`
	DetectWidth        int                   `json:"detect_width,omitempty"`
	DetectHeight       int                   `json:"detect_height,omitempty"`
	DetectFPS          int                   `json:"detect_fps,omitempty"`
	Objects            []string              `json:"objects,omitempty"`
	Zones              map[string]ZoneConfig `json:"zones,omitempty"`
	Location           string                `json:"location,omitempty"`
	Schedule           []ScheduleSlot        `json:"schedule,omitempty"`
}

// EffectiveSubURL devolve a URL do sub stream, caindo para a main quando vazio.
func (c CameraRecord) EffectiveSubURL() string {
	if strings.TrimSpace(c.SubStreamURL) != "" {
		return c.SubStreamURL
	}
	return c.MainStreamURL
}

// NormalizeName converte o nome da câmera num identificador estável
// para o relay e para o detection engine (minúsculo, sem espaço/hífen).
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, " ", "_")
	n = strings.ReplaceAll(n, "-", "_")
	return n
}

type StreamTier string

const (
	TierMain StreamTier = "main"
	TierSub  StreamTier = "sub"
)

// TargetState é o estado de registro de um StreamTarget no relay.
type TargetState string

const (
	TargetUnregistered TargetState = "unregistered"
	TargetPending      TargetState = "pending"
	TargetActive       TargetState = "active"
	TargetFailed       TargetState = "failed"
)

// StreamTarget é um alvo derivado por câmera (um por tier).
// O ID é função pura de (nome normalizado, tier): renomear a câmera
// invalida os IDs antigos, não existe rename atômico no relay.
type StreamTarget struct {
	ID        string
	Tier      StreamTier
	SourceURL string
	State     TargetState
}

// TargetID monta o id estável de um stream no relay.
func TargetID(name string, tier StreamTier) string {
	return NormalizeName(name) + "_" + string(tier)
}

// TargetReport é o resultado de uma tentativa de sincronização de um alvo.
// Os dois efeitos (hot-reload e config durável) são rastreados separados:
// a falha de um não invalida o outro.
type TargetReport struct {
	TargetID  string
	Tier      StreamTier
	State     TargetState
	HotReload error
	Persist   error
}

func (r TargetReport) Failed() bool { return r.HotReload != nil || r.Persist != nil }

// ReconciliationReport agrega os resultados por câmera. Efêmero: quem
// chama decide o que logar/publicar; nunca é persistido.
type ReconciliationReport struct {
	Camera    string
	Operation string // "register" | "unregister"
	Targets   []TargetReport
}

func (r ReconciliationReport) AllOK() bool {
	for _, t := range r.Targets {
		if t.Failed() {
			return false
		}
	}
	return true
}
