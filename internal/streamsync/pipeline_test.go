package streamsync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sua-org/titan-nvr/internal/core"
)

func TestConvertSourceURL_Passthrough(t *testing.T) {
	for _, u := range []string{
		"rtsp://10.0.0.10:554/Streaming/Channels/101",
		"rtsps://cam.local/stream",
		"exec:ffmpeg -i algo -f mpegts -",
		"ffmpeg:cam01#video=h264",
	} {
		got, err := convertSourceURL(u, core.TierMain)
		require.NoError(t, err, "url %q", u)
		assert.Equal(t, u, got, "passthrough não deve modificar a URL")
	}
}

func TestConvertSourceURL_HTTPWrappedPerTier(t *testing.T) {
	src := "http://cam.local/mjpeg"

	main, err := convertSourceURL(src, core.TierMain)
	require.NoError(t, err)
	sub, err := convertSourceURL(src, core.TierSub)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(main, "exec:ffmpeg"))
	assert.True(t, strings.HasPrefix(sub, "exec:ffmpeg"))
	assert.NotEqual(t, main, sub, "cada tier tem parâmetros próprios")

	// Sub: downscale e bitrate baixo pro grid.
	assert.Contains(t, sub, "scale=640:-2")
	assert.Contains(t, sub, "-maxrate 500k")
	// Main: qualidade cheia pra gravação.
	assert.Contains(t, main, "-maxrate 4M")
	assert.NotContains(t, main, "scale=")

	// Os dois afinados pra live de baixa latência.
	for _, cmd := range []string{main, sub} {
		assert.Contains(t, cmd, "-tune zerolatency")
		assert.Contains(t, cmd, "-g 30")
		assert.Contains(t, cmd, src)
	}
}

func TestConvertSourceURL_UnsupportedSchemeRejected(t *testing.T) {
	for _, u := range []string{"ftp://cam/stream", "file:///tmp/video.mp4", "", "   "} {
		_, err := convertSourceURL(u, core.TierMain)
		require.Error(t, err, "url %q", u)
		var schemeErr *UnsupportedSchemeError
		assert.ErrorAs(t, err, &schemeErr)
	}
}
