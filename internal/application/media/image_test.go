package media

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-sentinel-ai/internal/config"
)

func grayFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = uint8((x + y) % 256)
		}
	}
	return encodeFrame(t, img)
}

func TestPrepareForSubmitDownscalesWideFrames(t *testing.T) {
	p := NewProcessor(&config.MediaConfig{MaxSubmitWidth: 640})
	frame := grayFrame(t, 1920, 1080)

	prepared, err := p.PrepareForSubmit(frame)

	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(prepared))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	// 等比缩放
	assert.Equal(t, 360, img.Bounds().Dy())
}

func TestPrepareForSubmitNeverUpscales(t *testing.T) {
	p := NewProcessor(&config.MediaConfig{MaxSubmitWidth: 1280})
	frame := grayFrame(t, 320, 240)

	prepared, err := p.PrepareForSubmit(frame)

	require.NoError(t, err)
	// 宽度已达标的帧原样返回
	assert.Equal(t, frame, prepared)
}

func TestPrepareForSubmitRejectsGarbage(t *testing.T) {
	p := NewProcessor(&config.MediaConfig{})

	_, err := p.PrepareForSubmit([]byte("not an image"))

	assert.Error(t, err)
}

func TestSaveThumbnail(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(&config.MediaConfig{ThumbnailWidth: 160, ThumbnailDir: dir})

	path, err := p.SaveThumbnail("evt-1", grayFrame(t, 640, 480))

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "evt-1.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
}

func TestSaveThumbnailDisabledWithoutDir(t *testing.T) {
	p := NewProcessor(&config.MediaConfig{})

	path, err := p.SaveThumbnail("evt-1", grayFrame(t, 640, 480))

	require.NoError(t, err)
	assert.Empty(t, path)
}
