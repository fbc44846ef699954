package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certimail/models"
)

// tinyBackground returns a 2x2 solid PNG as a data URI.
func tinyBackground(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testTemplate(t *testing.T, fields []models.TextField) *models.Template {
	t.Helper()

	tpl := &models.Template{
		Name:            "Certificate",
		BackgroundImage: tinyBackground(t),
	}
	require.NoError(t, tpl.SetFields(fields))
	return tpl
}

func TestResolveFieldValue(t *testing.T) {
	field := models.TextField{PlaceholderKey: "name", FallbackText: "Your Name"}

	assert.Equal(t, "Alice", ResolveFieldValue(field, map[string]string{"name": "Alice"}))
	assert.Equal(t, "Your Name", ResolveFieldValue(field, map[string]string{"email": "a@b.c"}))
	assert.Equal(t, "Your Name", ResolveFieldValue(field, nil))
}

func TestResolveFieldValueEmptyColumnWins(t *testing.T) {
	// An existing column always binds, even when its value is empty
	field := models.TextField{PlaceholderKey: "name", FallbackText: "Your Name"}
	assert.Equal(t, "", ResolveFieldValue(field, map[string]string{"name": ""}))
}

func TestResolveFieldValueTrimsKey(t *testing.T) {
	field := models.TextField{PlaceholderKey: " name ", FallbackText: "fallback"}
	assert.Equal(t, "Alice", ResolveFieldValue(field, map[string]string{"name": "Alice"}))
}

func TestNewCompositorRejectsBadBackground(t *testing.T) {
	tpl := &models.Template{BackgroundImage: "data:image/png;base64,not-valid-base64!!"}

	_, err := NewCompositor(tpl)
	assert.Error(t, err)
}

func TestRenderProducesFixedSizePNG(t *testing.T) {
	tpl := testTemplate(t, []models.TextField{
		{PlaceholderKey: "name", FallbackText: "Alice", X: 400, Y: 250, FontSize: 24, Color: "#ff0000"},
	})

	comp, err := NewCompositor(tpl)
	require.NoError(t, err)

	uri, err := comp.Render(map[string]string{"name": "Alice"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, CanvasWidth, img.Bounds().Dx())
	assert.Equal(t, CanvasHeight, img.Bounds().Dy())

	// The red field text must actually land on the canvas
	foundRed := false
	for y := 0; y < CanvasHeight && !foundRed; y++ {
		for x := 0; x < CanvasWidth; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r>>8 > 200 && g>>8 < 80 && b>>8 < 80 {
				foundRed = true
				break
			}
		}
	}
	assert.True(t, foundRed, "expected rendered text pixels in the field color")
}

func TestRenderAllAlignsWithRows(t *testing.T) {
	tpl := testTemplate(t, []models.TextField{
		{PlaceholderKey: "name", FallbackText: "n/a", X: 100, Y: 100, FontSize: 16},
	})

	comp, err := NewCompositor(tpl)
	require.NoError(t, err)

	rows := []map[string]string{
		{"name": "Alice"},
		{"name": "Bob"},
		{"name": "Carol"},
	}
	images, err := comp.RenderAll(rows)
	require.NoError(t, err)
	assert.Len(t, images, len(rows))
	for _, uri := range images {
		assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	}
}

func TestRenderPlaceholder(t *testing.T) {
	uri, err := RenderPlaceholder("Test Certificate")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(DataURIPayload(uri))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, CanvasWidth, img.Bounds().Dx())
	assert.Equal(t, CanvasHeight, img.Bounds().Dy())
}

func TestDataURIPayload(t *testing.T) {
	assert.Equal(t, "abc123", DataURIPayload("data:image/png;base64,abc123"))
	assert.Equal(t, "abc123", DataURIPayload("abc123"))
}
