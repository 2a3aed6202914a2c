package vision_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/vision"
	"github.com/your-org/facewatch/internal/vision/visiontest"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEuclideanDistances(t *testing.T) {
	d := vision.EuclideanDistances([][]float32{{0, 0}, {3, 4}, {1}}, []float32{0, 0})
	require.Len(t, d, 3)
	assert.Equal(t, 0.0, d[0])
	assert.InDelta(t, 5.0, d[1], 1e-9)
	assert.True(t, math.IsInf(d[2], 1))
}

func TestMatch(t *testing.T) {
	known := []models.KnownFace{
		{PersonID: 1, Name: "Alice"},
		{PersonID: 2, Name: "Bob"},
		{PersonID: 3, Name: "Carol"},
	}

	t.Run("nearest within tolerance", func(t *testing.T) {
		kf, dist, ok := vision.Match(known, []float64{0.7, 0.3, 0.5}, 0.6)
		require.True(t, ok)
		assert.Equal(t, "Bob", kf.Name)
		assert.InDelta(t, 0.7, vision.Confidence(dist), 1e-9)
	})

	t.Run("tie goes to earlier entry", func(t *testing.T) {
		kf, _, ok := vision.Match(known, []float64{0.4, 0.2, 0.2}, 0.6)
		require.True(t, ok)
		assert.Equal(t, "Bob", kf.Name)
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		kf, _, ok := vision.Match(known[:1], []float64{0.6}, 0.6)
		require.True(t, ok)
		assert.Equal(t, "Alice", kf.Name)

		_, dist, ok := vision.Match(known[:1], []float64{0.6000001}, 0.6)
		assert.False(t, ok)
		assert.InDelta(t, 0.6000001, dist, 1e-9)
	})

	t.Run("no known faces", func(t *testing.T) {
		_, _, ok := vision.Match(nil, nil, 0.6)
		assert.False(t, ok)
	})
}

func TestEmbedSingle(t *testing.T) {
	data := pngBytes(t, 64, 64)
	small := visiontest.Face{Box: image.Rect(0, 0, 10, 10), Embedding: []float32{1, 0}}
	large := visiontest.Face{Box: image.Rect(20, 20, 60, 60), Embedding: []float32{0, 1}}

	t.Run("no face", func(t *testing.T) {
		_, err := vision.EmbedSingle(visiontest.New(), data, false)
		assert.ErrorIs(t, err, vision.ErrNoFace)
	})

	t.Run("one face", func(t *testing.T) {
		emb, err := vision.EmbedSingle(visiontest.New(small), data, false)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, emb)
	})

	t.Run("several faces rejected", func(t *testing.T) {
		_, err := vision.EmbedSingle(visiontest.New(small, large), data, false)
		assert.ErrorIs(t, err, vision.ErrMultipleFaces)
	})

	t.Run("best face picks largest", func(t *testing.T) {
		emb, err := vision.EmbedSingle(visiontest.New(small, large), data, true)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1}, emb)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := vision.EmbedSingle(visiontest.New(small), []byte("not an image"), false)
		assert.Error(t, err)
	})
}
