// Package overlay stamps a PNG template over user photos.
package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// ErrInvalidTemplate is returned for template names outside [a-z0-9_-].
var ErrInvalidTemplate = errors.New("invalid template name")

var templateName = regexp.MustCompile(`^[a-z0-9_-]+$`)

const jpegQuality = 100

// mirrorSuffix keys the flipped copy of a template in the cache.
const mirrorSuffix = ":mirror"

// Overlay applies templates loaded from a directory of PNG files.
// It is safe for concurrent use.
type Overlay struct {
	dir string

	mu        sync.Mutex
	templates map[string]image.Image
}

// New creates an Overlay reading templates from dir.
func New(dir string) *Overlay {
	return &Overlay{dir: dir, templates: make(map[string]image.Image)}
}

// Apply decodes img, draws the named template over it and returns the result
// as JPEG. With mirror set the template is flipped and drawn on the right.
func (o *Overlay) Apply(name string, img []byte, mirror bool) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	tmpl, err := o.template(name, mirror)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, place(src, tmpl, mirror), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Compose draws tmpl over a copy of img. If img is relatively taller than
// tmpl, the template spans the full width along the bottom edge; otherwise it
// spans the full height along the left edge, or the right edge when mirrored.
func Compose(img, tmpl image.Image, mirror bool) *image.RGBA {
	if mirror {
		tmpl = flipHorizontal(tmpl)
	}
	return place(img, tmpl, mirror)
}

// place draws an already oriented template; mirror only selects the anchor.
func place(img, tmpl image.Image, mirror bool) *image.RGBA {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	imgW, imgH := b.Dx(), b.Dy()
	ovrW, ovrH := tmpl.Bounds().Dx(), tmpl.Bounds().Dy()
	if ovrW == 0 || ovrH == 0 {
		return canvas
	}

	var dst image.Rectangle
	if imgW*ovrH < imgH*ovrW {
		h := ovrH * imgW / ovrW
		dst = image.Rect(0, imgH-h, imgW, imgH)
	} else {
		w := ovrW * imgH / ovrH
		x := 0
		if mirror {
			x = imgW - w
		}
		dst = image.Rect(x, 0, x+w, imgH)
	}

	draw.CatmullRom.Scale(canvas, dst, tmpl, tmpl.Bounds(), draw.Over, nil)
	return canvas
}

func flipHorizontal(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, y-b.Min.Y, src.At(x, y))
		}
	}
	return dst
}

// template returns the named template, flipped when mirror is set. Both
// orientations are cached.
func (o *Overlay) template(name string, mirror bool) (image.Image, error) {
	if !templateName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTemplate, name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	key := name
	if mirror {
		key = name + mirrorSuffix
	}
	if t, ok := o.templates[key]; ok {
		return t, nil
	}

	t, ok := o.templates[name]
	if !ok {
		var err error
		if t, err = o.load(name); err != nil {
			return nil, err
		}
		o.templates[name] = t
	}
	if mirror {
		t = flipHorizontal(t)
		o.templates[key] = t
	}
	return t, nil
}

func (o *Overlay) load(name string) (image.Image, error) {
	f, err := os.Open(filepath.Join(o.dir, name+".png"))
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", name, err)
	}
	return t, nil
}
