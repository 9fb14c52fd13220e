package export

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/san-kum/clothsim/internal/pbd"
	"github.com/san-kum/clothsim/internal/viz"
)

const (
	background = "#0a0a0a"
	meshColor  = "#00ffcc"
	pinColor   = "#ff4466"
)

// CanvasToSVG converts a braille canvas to SVG, one circle per dot.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	w, h := canvas.Dots()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", meshColor)
	r := scale * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// Mesh is a frame snapshot to draw.
type Mesh struct {
	Positions []pbd.Vec3
	Indices   []uint32
	// Pins are drawn as markers.
	Pins []uint32
}

type segment struct {
	x0, y0, x1, y1 float64
	depth          float64
}

// MeshToSVG projects the mesh wireframe through cam. Edges are painted far
// to near so closer ones stay on top.
func MeshToSVG(m Mesh, cam *viz.Camera, width, height int) string {
	if cam == nil {
		cam = viz.NewCamera()
	}
	var segs []segment
	for _, e := range viz.MeshEdges(m.Indices) {
		if int(e[1]) >= len(m.Positions) {
			continue
		}
		x0, y0, d0, ok0 := cam.Project(m.Positions[e[0]], width, height)
		x1, y1, d1, ok1 := cam.Project(m.Positions[e[1]], width, height)
		if !ok0 || !ok1 {
			continue
		}
		segs = append(segs, segment{float64(x0), float64(y0), float64(x1), float64(y1), (d0 + d1) / 2})
	}
	slices.SortStableFunc(segs, func(a, b segment) int {
		switch {
		case a.depth > b.depth:
			return -1
		case a.depth < b.depth:
			return 1
		}
		return 0
	})

	var sb strings.Builder
	header(&sb, float64(width), float64(height))
	fmt.Fprintf(&sb, "<g stroke=\"%s\" stroke-width=\"1\">\n", meshColor)
	for _, s := range segs {
		fmt.Fprintf(&sb, "<line x1=\"%.1f\" y1=\"%.1f\" x2=\"%.1f\" y2=\"%.1f\"/>\n", s.x0, s.y0, s.x1, s.y1)
	}
	sb.WriteString("</g>\n")
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", pinColor)
	for _, i := range m.Pins {
		if int(i) >= len(m.Positions) {
			continue
		}
		if x, y, _, ok := cam.Project(m.Positions[i], width, height); ok {
			fmt.Fprintf(&sb, "<circle cx=\"%d\" cy=\"%d\" r=\"3\"/>\n", x, y)
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// SeriesToSVG plots ys against xs as a polyline.
func SeriesToSVG(xs, ys []float64, width, height int, strokeColor string) string {
	n := min(len(xs), len(ys))
	if n < 2 {
		return ""
	}
	minX, maxX := slices.Min(xs[:n]), slices.Max(xs[:n])
	minY, maxY := slices.Min(ys[:n]), slices.Max(ys[:n])

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	header(&sb, float64(width), float64(height))
	fmt.Fprintf(&sb, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\" d=\"M", strokeColor)
	for i := 0; i < n; i++ {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n</svg>")
	return sb.String()
}

func header(w io.Writer, width, height float64) {
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}
