package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strings"

	imagedraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"certimail/models"
)

// Templates are designed against this fixed frame; there is no
// responsive scaling at generation time.
const (
	CanvasWidth  = 800
	CanvasHeight = 500
)

// Compositor renders one raster image per CSV row from a template:
// background stretched to fill the canvas, then each text field drawn
// in list order, center-aligned on its stored position.
type Compositor struct {
	background image.Image
	fields     []models.TextField
}

// NewCompositor decodes the template's background and field list. A
// background that cannot be decoded is fatal for the whole batch, since
// every row shares it.
func NewCompositor(tpl *models.Template) (*Compositor, error) {
	fields, err := tpl.Fields()
	if err != nil {
		return nil, fmt.Errorf("invalid text fields: %w", err)
	}

	background, err := decodeDataURI(tpl.BackgroundImage)
	if err != nil {
		return nil, fmt.Errorf("failed to decode background image: %w", err)
	}

	return &Compositor{background: background, fields: fields}, nil
}

// Render composites one image for the given row-record and returns it
// as a PNG data URI. A nil row renders every field's fallback text.
func (c *Compositor) Render(row map[string]string) (string, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))

	// Background stretched to fill the canvas exactly
	imagedraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), c.background, c.background.Bounds(), imagedraw.Src, nil)

	for _, field := range c.fields {
		value := ResolveFieldValue(field, row)
		drawCentered(canvas, value, field)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// RenderAll produces one image per row, index-aligned with the input.
func (c *Compositor) RenderAll(rows []map[string]string) ([]string, error) {
	images := make([]string, 0, len(rows))
	for _, row := range rows {
		img, err := c.Render(row)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// ResolveFieldValue picks the row value bound to the field's placeholder
// key when that column exists, else the field's fallback text. The
// resolution is deterministic per (field, row) pair.
func ResolveFieldValue(field models.TextField, row map[string]string) string {
	key := strings.TrimSpace(field.PlaceholderKey)
	if value, ok := row[key]; ok {
		return value
	}
	return field.FallbackText
}

func drawCentered(dst *image.RGBA, text string, field models.TextField) {
	face := resolveFace(field.FontFamily, field.FontSize)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(parseHexColor(field.Color)),
		Face: face,
	}

	width := drawer.MeasureString(text)
	metrics := face.Metrics()

	// Center horizontally and vertically on (x, y): the baseline sits
	// half the glyph height below the midpoint.
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(int(field.X)) - width/2,
		Y: fixed.I(int(field.Y)) + (metrics.Ascent-metrics.Descent)/2,
	}
	drawer.DrawString(text)
}

// resolveFace maps a CSS-ish family name to one of the bundled Go fonts
// at the requested size. An unknown family falls back to the regular
// face; a face that fails to build degrades to fixed 7x13 metrics
// instead of aborting the render.
func resolveFace(family string, size float64) font.Face {
	if size <= 0 {
		size = 16
	}

	ttf := goregular.TTF
	switch {
	case strings.Contains(strings.ToLower(family), "bold"):
		ttf = gobold.TTF
	case strings.Contains(strings.ToLower(family), "italic"):
		ttf = goitalic.TTF
	case strings.Contains(strings.ToLower(family), "mono"),
		strings.Contains(strings.ToLower(family), "courier"):
		ttf = gomono.TTF
	}

	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return basicfont.Face7x13
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}

	return face
}

// RenderPlaceholder draws the given text centered on a plain white
// canvas. The test send attaches this instead of a real template render.
func RenderPlaceholder(text string) (string, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawCentered(canvas, text, models.TextField{
		X:        CanvasWidth / 2,
		Y:        CanvasHeight / 2,
		FontSize: 32,
		Color:    "#333333",
	})

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// parseHexColor parses #rrggbb (or #rgb). Anything else renders black.
func parseHexColor(s string) color.RGBA {
	s = strings.TrimSpace(s)
	black := color.RGBA{A: 255}

	if !strings.HasPrefix(s, "#") {
		return black
	}
	s = s[1:]

	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return black
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return black
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// decodeDataURI decodes a base64 data URI (or raw base64) into an image.
func decodeDataURI(uri string) (image.Image, error) {
	payload := uri
	if idx := strings.Index(uri, "base64,"); idx >= 0 {
		payload = uri[idx+len("base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// DataURIPayload strips the data URI prefix, returning the raw base64
// payload used as an attachment body.
func DataURIPayload(uri string) string {
	if idx := strings.Index(uri, "base64,"); idx >= 0 {
		return uri[idx+len("base64,"):]
	}
	return uri
}
