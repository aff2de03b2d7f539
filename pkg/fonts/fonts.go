// Package fonts provides the typefaces used for raster rendering.
//
// The Go fonts ship with golang.org/x/image, so PNG output needs no system
// fonts.
package fonts

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Weight selects a typeface.
type Weight int

const (
	Regular Weight = iota
	Bold
)

// Cache for parsed fonts (parsed once on first access).
var (
	loadOnce sync.Once
	loadErr  error
	parsed   [2]*truetype.Font
)

func load() error {
	loadOnce.Do(func() {
		for w, ttf := range [][]byte{goregular.TTF, gobold.TTF} {
			f, err := truetype.Parse(ttf)
			if err != nil {
				loadErr = fmt.Errorf("parse font: %w", err)
				return
			}
			parsed[w] = f
		}
	})
	return loadErr
}

// Load parses the embedded typefaces. Face calls it implicitly; calling it
// first surfaces parse errors before drawing starts.
func Load() error { return load() }

// Face returns a font face of weight w at size points (72 DPI).
func Face(w Weight, size float64) (font.Face, error) {
	if err := load(); err != nil {
		return nil, err
	}
	if w != Bold {
		w = Regular
	}
	return truetype.NewFace(parsed[w], &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull}), nil
}

// MustFace is Face for callers that have already called [Load].
func MustFace(w Weight, size float64) font.Face {
	f, err := Face(w, size)
	if err != nil {
		panic(err)
	}
	return f
}
