// internal/streamsync/pipeline.go
package streamsync

import (
	"fmt"
	"strings"

	"github.com/sua-org/titan-nvr/internal/core"
)

// ErrUnsupportedScheme: URL que o relay não sabe consumir nem conseguimos
// embrulhar em pipeline. Rejeitada antes de qualquer chamada de rede.
type UnsupportedSchemeError struct {
	URL string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("esquema de stream não suportado: %q", e.URL)
}

// convertSourceURL decide como o relay vai consumir a fonte:
//   - exec:/ffmpeg: já é pipeline pronto, passa direto
//   - rtsp://, rtsps:// o relay consome nativo (passthrough, zero CPU)
//   - http://, https:// (MJPEG/JPEG) precisa de transcode via ffmpeg,
//     com parâmetros por tier
func convertSourceURL(raw string, tier core.StreamTier) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", &UnsupportedSchemeError{URL: raw}
	}

	if strings.HasPrefix(u, "exec:") || strings.HasPrefix(u, "ffmpeg:") {
		return u, nil
	}
	if strings.HasPrefix(u, "rtsp://") || strings.HasPrefix(u, "rtsps://") {
		return u, nil
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return ffmpegPipeline(u, tier), nil
	}

	return "", &UnsupportedSchemeError{URL: raw}
}

// ffmpegPipeline monta o comando de transcode por tier:
// sub = downscale + bitrate baixo para o grid; main = qualidade cheia
// para gravação/detalhe. Os dois com tune zerolatency e keyframe a cada
// 30 frames para latência de live baixa.
func ffmpegPipeline(sourceURL string, tier core.StreamTier) string {
	if tier == core.TierSub {
		return "exec:ffmpeg -hide_banner -loglevel error " +
			"-i " + sourceURL + " " +
			"-c:v libx264 -preset ultrafast -tune zerolatency " +
			"-vf scale=640:-2 " +
			"-crf 28 " +
			"-maxrate 500k -bufsize 1M " +
			"-g 30 -f mpegts -"
	}
	return "exec:ffmpeg -hide_banner -loglevel error " +
		"-i " + sourceURL + " " +
		"-c:v libx264 -preset superfast -tune zerolatency " +
		"-crf 23 -maxrate 4M -bufsize 8M " +
		"-g 30 -f mpegts -"
}
