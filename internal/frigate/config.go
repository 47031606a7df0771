// internal/frigate/config.go
package frigate

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/sua-org/titan-nvr/internal/core"
	"gopkg.in/yaml.v3"
)

// Config representa o documento declarativo completo do Frigate.
// Cada seção é um struct dedicado: o wire format (YAML) fica isolado
// dos tipos internos do backend.
type Config struct {
	MQTT      MQTTSection         `yaml:"mqtt"`
	Detectors map[string]Detector `yaml:"detectors"`
	Database  DatabaseSection     `yaml:"database"`
	Model     ModelSection        `yaml:"model"`
	Record    RecordSection       `yaml:"record"`
	Snapshots SnapshotsSection    `yaml:"snapshots"`
	Objects   ObjectsSection      `yaml:"objects"`
	Go2RTC    Go2RTCSection       `yaml:"go2rtc"`
	UI        UISection           `yaml:"ui"`
	Logger    LoggerSection       `yaml:"logger"`
	Cameras   map[string]Camera   `yaml:"cameras"`
}

type MQTTSection struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

type Detector struct {
	Type       string `yaml:"type"`
	NumThreads int    `yaml:"num_threads,omitempty"`
}

type DatabaseSection struct {
	Path string `yaml:"path"`
}

type ModelSection struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Retain struct {
	Days int    `yaml:"days"`
	Mode string `yaml:"mode,omitempty"`
}

type EventRetain struct {
	Default int    `yaml:"default"`
	Mode    string `yaml:"mode,omitempty"`
}

type RecordEvents struct {
	Retain EventRetain `yaml:"retain"`
}

type RecordSection struct {
	Enabled bool          `yaml:"enabled"`
	Retain  Retain        `yaml:"retain"`
	Events  *RecordEvents `yaml:"events,omitempty"`
}

type SnapshotsSection struct {
	Enabled     bool        `yaml:"enabled"`
	Timestamp   bool        `yaml:"timestamp,omitempty"`
	BoundingBox bool        `yaml:"bounding_box,omitempty"`
	Retain      EventRetain `yaml:"retain"`
}

type ObjectFilter struct {
	MinScore  float64 `yaml:"min_score,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

type ObjectsSection struct {
	Track   []string                `yaml:"track"`
	Filters map[string]ObjectFilter `yaml:"filters,omitempty"`
}

type Go2RTCSection struct {
	Streams map[string]string `yaml:"streams"`
}

type UISection struct {
	LiveMode string `yaml:"live_mode"`
	Timezone string `yaml:"timezone,omitempty"`
}

type LoggerSection struct {
	Default string            `yaml:"default"`
	Logs    map[string]string `yaml:"logs,omitempty"`
}

type Input struct {
	Path  string   `yaml:"path"`
	Roles []string `yaml:"roles"`
}

type FFmpeg struct {
	Inputs []Input `yaml:"inputs"`
}

type Detect struct {
	Enabled bool `yaml:"enabled"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
	FPS     int  `yaml:"fps"`
}

type Camera struct {
	Enabled   bool                       `yaml:"enabled"`
	FFmpeg    FFmpeg                     `yaml:"ffmpeg"`
	Detect    Detect                     `yaml:"detect"`
	Record    RecordSection              `yaml:"record"`
	Snapshots SnapshotsSection           `yaml:"snapshots"`
	Objects   ObjectsSection             `yaml:"objects"`
	Zones     map[string]core.ZoneConfig `yaml:"zones,omitempty"`
}

// retainPolicyFor traduz o recording mode do store para a política de
// retenção do Frigate. Mapeamento fixo de três vias; none desliga a
// gravação por completo.
func retainPolicyFor(mode core.RecordingMode) (retainMode string, enabled bool) {
	switch mode {
	case core.ModeContinuous:
		return "all", true
	case core.ModeMotion:
		return "motion", true
	case core.ModeEvents:
		return "active_objects", true
	default:
		return "", false
	}
}

const (
	defaultDetectWidth  = 1280
	defaultDetectHeight = 720
	defaultDetectFPS    = 5
)

func baseConfig(timezone string) Config {
	return Config{
		MQTT: MQTTSection{
			Enabled:     true,
			Host:        "mqtt",
			Port:        1883,
			TopicPrefix: "frigate",
			ClientID:    "frigate",
		},
		Detectors: map[string]Detector{
			"cpu1": {Type: "cpu", NumThreads: 2},
		},
		Database: DatabaseSection{Path: "/media/frigate/frigate.db"},
		Model:    ModelSection{Width: 320, Height: 320},
		Record: RecordSection{
			Enabled: true,
			Retain:  Retain{Days: 7, Mode: "motion"},
			Events:  &RecordEvents{Retain: EventRetain{Default: 14, Mode: "active_objects"}},
		},
		Snapshots: SnapshotsSection{
			Enabled:     true,
			Timestamp:   true,
			BoundingBox: true,
			Retain:      EventRetain{Default: 14},
		},
		Objects: ObjectsSection{
			Track: []string{"person", "car", "dog", "cat"},
			Filters: map[string]ObjectFilter{
				"person": {MinScore: 0.5, Threshold: 0.7},
			},
		},
		Go2RTC: Go2RTCSection{Streams: map[string]string{}},
		UI:     UISection{LiveMode: "mse", Timezone: timezone},
		Logger: LoggerSection{
			Default: "info",
			Logs:    map[string]string{"frigate.event": "debug"},
		},
		Cameras: map[string]Camera{},
	}
}

// buildCamera monta a entrada de uma câmera: sub stream para detecção
// (menos CPU), main stream para gravação, retenção derivada do modo.
func buildCamera(cam core.CameraRecord, relayRTSPBase string) Camera {
	id := core.NormalizeName(cam.Name)

	retainMode, recordEnabled := retainPolicyFor(cam.RecordingMode)
	retentionDays := cam.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 3
	}
	eventDays := cam.EventRetentionDays
	if eventDays <= 0 {
		eventDays = 10
	}

	detectW, detectH, detectFPS := cam.DetectWidth, cam.DetectHeight, cam.DetectFPS
	if detectW <= 0 {
		detectW = defaultDetectWidth
	}
	if detectH <= 0 {
		detectH = defaultDetectHeight
	}
	if detectFPS <= 0 {
		detectFPS = defaultDetectFPS
	}

	track := cam.Objects
	if len(track) == 0 {
		track = []string{"person"}
	}

	record := RecordSection{
		Enabled: recordEnabled,
		Events:  &RecordEvents{Retain: EventRetain{Default: eventDays}},
	}
	if recordEnabled {
		record.Retain = Retain{Days: retentionDays, Mode: retainMode}
	}

	return Camera{
		Enabled: true,
		FFmpeg: FFmpeg{
			Inputs: []Input{
				{Path: fmt.Sprintf("%s/%s_sub", relayRTSPBase, id), Roles: []string{"detect"}},
				{Path: fmt.Sprintf("%s/%s_main", relayRTSPBase, id), Roles: []string{"record"}},
			},
		},
		Detect: Detect{Enabled: true, Width: detectW, Height: detectH, FPS: detectFPS},
		Record: record,
		Snapshots: SnapshotsSection{
			Enabled: true,
			Retain:  EventRetain{Default: eventDays},
		},
		Objects: ObjectsSection{Track: track},
		Zones:   cam.Zones,
	}
}

// Generate é pura e determinística: o mesmo conjunto de câmeras (por
// valor) produz sempre o mesmo Config. Câmeras inativas ficam de fora.
func Generate(cameras []core.CameraRecord, relayRTSPBase, timezone string) Config {
	cfg := baseConfig(timezone)

	// Ordena por nome normalizado para a saída ser estável
	// independente da ordem do store.
	sorted := make([]core.CameraRecord, 0, len(cameras))
	for _, cam := range cameras {
		if !cam.IsActive || cam.Name == "" {
			continue
		}
		sorted = append(sorted, cam)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return core.NormalizeName(sorted[i].Name) < core.NormalizeName(sorted[j].Name)
	})

	for _, cam := range sorted {
		id := core.NormalizeName(cam.Name)
		cfg.Cameras[id] = buildCamera(cam, relayRTSPBase)

		// Referência de playback no catálogo do relay.
		cfg.Go2RTC.Streams[id+"_sub"] = fmt.Sprintf("%s/%s_sub", relayRTSPBase, id)
		cfg.Go2RTC.Streams[id+"_main"] = fmt.Sprintf("%s/%s_main", relayRTSPBase, id)
	}

	return cfg
}

// timestampPrefix marca a única linha do documento que varia entre
// gerações idênticas; quem compara documentos ignora linhas com ele.
const timestampPrefix = "# Generated at: "

// Encode serializa o Config com o cabeçalho de geração. Tirando a linha
// do timestamp, o mesmo Config encoda sempre os mesmos bytes.
func Encode(cfg Config, generatedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# TitanNVR - Frigate Configuration\n")
	buf.WriteString("# Auto-generated - DO NOT EDIT MANUALLY\n")
	buf.WriteString(timestampPrefix + generatedAt.UTC().Format(time.RFC3339) + "\n\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshal frigate config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StripTimestamp remove a linha do timestamp para comparação byte a byte.
func StripTimestamp(doc []byte) []byte {
	lines := bytes.Split(doc, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		if bytes.HasPrefix(line, []byte(timestampPrefix)) {
			continue
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}
