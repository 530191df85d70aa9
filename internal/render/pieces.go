package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/cheese-trainer/internal/rules"
)

// Glyph outlines on a 45x45 canvas. {F} and {S} are replaced by the body
// and outline colours of the side.
var glyphs = map[rules.PieceKind]string{
	rules.Pawn: `<circle cx="22.5" cy="14" r="5.5"/>` +
		`<path d="M14 38 L31 38 L28 30 L25.5 20 L19.5 20 L17 30 Z"/>`,
	rules.Rook: `<path d="M11 39 L34 39 L34 35 L31 35 L30 17 L33 17 L33 10 L29 10 L29 13 L25 13 L25 10 L20 10 L20 13 L16 13 L16 10 L12 10 L12 17 L15 17 L14 35 L11 35 Z"/>`,
	rules.Knight: `<path d="M12 39 L34 39 L32 31 L30 20 L27 12 L23 9 L21 5 L19 10 L14 14 L10 22 L12 25 L17 22 L20 21 L15 31 Z"/>` +
		`<circle cx="19" cy="14" r="1.5" fill="{S}"/>`,
	rules.Bishop: `<path d="M12 39 L33 39 L31 35 L14 35 Z"/>` +
		`<ellipse cx="22.5" cy="25" rx="7" ry="10"/>` +
		`<circle cx="22.5" cy="11" r="2.5"/>`,
	rules.Queen: `<path d="M11 39 L34 39 L32 33 L13 33 Z"/>` +
		`<path d="M13 33 L32 33 L36 14 L29 26 L27 10 L22.5 25 L18 10 L16 26 L9 14 Z"/>` +
		`<circle cx="9" cy="13" r="2"/><circle cx="18" cy="9" r="2"/><circle cx="27" cy="9" r="2"/><circle cx="36" cy="13" r="2"/>`,
	rules.King: `<path d="M11 39 L34 39 L32 33 L13 33 Z"/>` +
		`<path d="M13 33 L32 33 L35 22 L28 19 L22.5 24 L17 19 L10 22 Z"/>` +
		`<path d="M21 6 L24 6 L24 9 L27 9 L27 12 L24 12 L24 18 L21 18 L21 12 L18 12 L18 9 L21 9 Z"/>`,
}

const glyphFrame = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">` +
	`<g fill="{F}" stroke="{S}" stroke-width="1.5" stroke-linejoin="round">%s</g></svg>`

func glyphSVG(p rules.Piece) (string, error) {
	body, ok := glyphs[p.Kind]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %q", p.Kind)
	}
	fill, stroke := "#ffffff", "#000000"
	if p.Color == rules.Black {
		fill, stroke = "#000000", "#ffffff"
	}
	svg := fmt.Sprintf(glyphFrame, body)
	return strings.NewReplacer("{F}", fill, "{S}", stroke).Replace(svg), nil
}

type glyphKey struct {
	piece rules.Piece
	size  int
}

var (
	glyphCache   = map[glyphKey]image.Image{}
	glyphCacheMu sync.RWMutex
)

func pieceImage(p rules.Piece, size int) (image.Image, error) {
	key := glyphKey{piece: p, size: size}
	glyphCacheMu.RLock()
	if img, ok := glyphCache[key]; ok {
		glyphCacheMu.RUnlock()
		return img, nil
	}
	glyphCacheMu.RUnlock()

	svg, err := glyphSVG(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse glyph: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	glyphCacheMu.Lock()
	glyphCache[key] = img
	glyphCacheMu.Unlock()
	return img, nil
}
