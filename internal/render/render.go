package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-trainer/internal/rules"
)

const (
	DefaultSquareSize = 64
	minSquareSize     = 16
	maxSquareSize     = 128
	coordMargin       = 20
)

var (
	lightSquare     = color.RGBA{0xf0, 0xd9, 0xb5, 0xff}
	darkSquare      = color.RGBA{0xb5, 0x88, 0x63, 0xff}
	lastMoveFill    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	frameColor      = color.RGBA{0x30, 0x2e, 0x2b, 0xff}
	coordinateColor = color.RGBA{0xe8, 0xe6, 0xe3, 0xff}
)

// Highlight marks the last move.
type Highlight struct {
	From rules.Square
	To   rules.Square
}

type Options struct {
	SquareSize  int
	LastMove    *Highlight
	Flip        bool // draw from Black's side
	Coordinates bool
}

func (o Options) squareSize() int {
	switch {
	case o.SquareSize <= 0:
		return DefaultSquareSize
	case o.SquareSize < minSquareSize:
		return minSquareSize
	case o.SquareSize > maxSquareSize:
		return maxSquareSize
	}
	return o.SquareSize
}

// Size returns the pixel dimensions RenderPNG will produce.
func (o Options) Size() (int, int) {
	side := o.squareSize() * 8
	if o.Coordinates {
		side += coordMargin * 2
	}
	return side, side
}

// RenderPNG draws the position described by fen.
func RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	pos, err := rules.NewPositionFromFEN(fen)
	if err != nil {
		return nil, err
	}
	return RenderBoard(ctx, pos.Board(), opts)
}

// RenderBoard draws a board array indexed with a8 at 0.
func RenderBoard(ctx context.Context, board [64]rules.Piece, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sq := opts.squareSize()
	w, h := opts.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	origin := image.Point{}
	if opts.Coordinates {
		draw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, draw.Src)
		origin = image.Pt(coordMargin, coordMargin)
	}

	for i := 0; i < 64; i++ {
		s := rules.SquareFromIndex(i)
		clr := lightSquare
		if (s.File+s.Rank)%2 == 0 {
			clr = darkSquare
		}
		draw.Draw(img, squareRect(s, sq, origin, opts.Flip), image.NewUniform(clr), image.Point{}, draw.Src)
	}
	if hl := opts.LastMove; hl != nil && hl.From.Valid() && hl.To.Valid() {
		for _, s := range []rules.Square{hl.From, hl.To} {
			draw.Draw(img, squareRect(s, sq, origin, opts.Flip), image.NewUniform(lastMoveFill), image.Point{}, draw.Over)
		}
	}
	for i, p := range board {
		if p.Kind == rules.NoKind {
			continue
		}
		glyph, err := pieceImage(p, sq)
		if err != nil {
			return nil, err
		}
		draw.Draw(img, squareRect(rules.SquareFromIndex(i), sq, origin, opts.Flip), glyph, image.Point{}, draw.Over)
	}
	if opts.Coordinates {
		drawCoordinates(img, sq, origin, opts.Flip)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func squareRect(s rules.Square, size int, origin image.Point, flip bool) image.Rectangle {
	col, row := s.File, 7-s.Rank
	if flip {
		col, row = 7-s.File, s.Rank
	}
	x := origin.X + col*size
	y := origin.Y + row*size
	return image.Rect(x, y, x+size, y+size)
}

func drawCoordinates(img *image.RGBA, size int, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(coordinateColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*size

	for i := 0; i < 8; i++ {
		file, rank := i, 7-i
		if flip {
			file, rank = 7-i, i
		}
		center := origin.X + i*size + size/2
		centered(d, string(rune('a'+file)), center, boardEnd+(coordMargin+ascent)/2)
		middle := origin.Y + i*size + size/2
		centered(d, string(rune('1'+rank)), origin.X/2, middle+ascent/2)
	}
}

func centered(d *font.Drawer, text string, centerX, baseline int) {
	width := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}
