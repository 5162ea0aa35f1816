// Package preview draws a rendered sidebar frame to an image so operators
// can check the overlay without joining the server.
package preview

import (
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"jinxcore/internal/sidebar"
	"jinxcore/internal/text"
)

// Options controls preview layout.
type Options struct {
	FontPath string  // TTF to use; empty searches common locations
	FontSize float64 // points, only used with a TTF
	Padding  float64
	MinWidth float64
}

// DefaultOptions returns the standard layout.
func DefaultOptions() Options {
	return Options{
		FontSize: 16,
		Padding:  8,
		MinWidth: 120,
	}
}

var (
	defaultText = color.RGBA{255, 255, 255, 255}
	background  = color.RGBA{0, 0, 0, 96}
	titleBand   = color.RGBA{0, 0, 0, 128}
)

// Renderer draws frames. It is safe for concurrent use.
type Renderer struct {
	opts Options

	mu   sync.Mutex
	face font.Face // nil means gg's built-in bitmap face
}

// NewRenderer loads the font once. A missing font falls back to the
// built-in face.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{opts: opts}

	path := opts.FontPath
	if path == "" {
		path = findFont()
	}
	if path == "" {
		return r
	}
	face, err := gg.LoadFontFace(path, opts.FontSize)
	if err != nil {
		log.Printf("⚠️ Preview font %s not loaded, using built-in face: %v", path, err)
		return r
	}
	r.face = face
	return r
}

// findFont tries common font locations.
func findFont() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if matches, _ := filepath.Glob("*.ttf"); len(matches) > 0 {
		return matches[0]
	}
	return ""
}

func (r *Renderer) newContext(w, h int) *gg.Context {
	dc := gg.NewContext(w, h)
	if r.face != nil {
		dc.SetFontFace(r.face)
	}
	return dc
}

func measure(dc *gg.Context, t text.StyledText) float64 {
	w, _ := dc.MeasureString(t.Plain())
	return w
}

// Render draws f the way a client shows it: title centered on a darker
// band, lines left-aligned with their score right-aligned in red.
func (r *Renderer) Render(f sidebar.Frame) image.Image {
	return r.draw(f).Image()
}

// WritePNG renders f and encodes it as PNG.
func (r *Renderer) WritePNG(w io.Writer, f sidebar.Frame) error {
	return r.draw(f).EncodePNG(w)
}

func (r *Renderer) draw(f sidebar.Frame) *gg.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	pad := r.opts.Padding
	probe := r.newContext(1, 1)
	lineHeight := probe.FontHeight() * 1.4

	width := measure(probe, f.Title)
	gap := probe.FontHeight()
	for _, line := range f.Lines {
		sw, _ := probe.MeasureString(strconv.Itoa(int(line.Score)))
		if w := measure(probe, line.Text) + gap + sw; w > width {
			width = w
		}
	}
	width += 2 * pad
	if width < r.opts.MinWidth {
		width = r.opts.MinWidth
	}
	height := lineHeight*float64(len(f.Lines)+1) + 2*pad

	dc := r.newContext(int(width+0.5), int(height+0.5))

	dc.SetColor(background)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()
	dc.SetColor(titleBand)
	dc.DrawRectangle(0, 0, width, pad+lineHeight)
	dc.Fill()

	titleX := (width - measure(dc, f.Title)) / 2
	drawStyled(dc, f.Title, titleX, pad+lineHeight/2)

	for i, line := range f.Lines {
		y := pad + lineHeight*float64(i+1) + lineHeight/2
		drawStyled(dc, line.Text, pad, y)

		dc.SetColor(text.Red.RGBA())
		dc.DrawStringAnchored(strconv.Itoa(int(line.Score)), width-pad, y, 1, 0.5)
	}

	return dc
}

// drawStyled draws segments left to right starting at x, vertically
// centered on y.
func drawStyled(dc *gg.Context, t text.StyledText, x, y float64) {
	for _, seg := range t {
		c := defaultText
		if seg.Colored {
			c = seg.Color.RGBA()
		}
		dc.SetColor(c)
		dc.DrawStringAnchored(seg.Text, x, y, 0, 0.5)
		w, _ := dc.MeasureString(seg.Text)
		x += w
	}
}
