package viz

import (
	"math"
	"slices"

	"github.com/san-kum/clothsim/internal/pbd"
)

// Camera orbits the origin at a fixed distance.
type Camera struct {
	Yaw, Pitch float64
	Distance   float64
	Zoom       float64
}

func NewCamera() *Camera {
	return &Camera{Yaw: 0.6, Pitch: 0.5, Distance: 3, Zoom: 1}
}

func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw += dyaw
	c.Pitch = max(-1.5, min(1.5, c.Pitch+dpitch))
}

func (c *Camera) ZoomIn()  { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// view rotates p into camera space: x right, y up, z towards the viewer.
func (c *Camera) view(p pbd.Vec3) (x, y, z float64) {
	x, y, z = float64(p.X), float64(p.Y), float64(p.Z)
	cy, sy := math.Cos(c.Yaw), math.Sin(c.Yaw)
	x, z = x*cy-z*sy, x*sy+z*cy
	cp, sp := math.Cos(c.Pitch), math.Sin(c.Pitch)
	y, z = y*cp-z*sp, y*sp+z*cp
	return x, y, z
}

// Project maps p to raster coordinates on a sw x sh raster. depth grows
// away from the viewer; ok is false for points behind the camera.
func (c *Camera) Project(p pbd.Vec3, sw, sh int) (sx, sy int, depth float64, ok bool) {
	x, y, z := c.view(p)
	d := c.Distance - z
	if d <= 0.05 {
		return 0, 0, 0, false
	}
	scale := c.Zoom * c.Distance / d * float64(min(sw, sh)) / 2
	sx = sw/2 + int(math.Round(x*scale))
	sy = sh/2 - int(math.Round(y*scale))
	return sx, sy, d, true
}

// MeshEdges returns the unique edges of a triangle list, each with the
// lower index first, sorted.
func MeshEdges(indices []uint32) [][2]uint32 {
	edges := make([][2]uint32, 0, len(indices))
	for t := 0; t+2 < len(indices); t += 3 {
		tri := indices[t : t+3]
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			edges = append(edges, [2]uint32{a, b})
		}
	}
	slices.SortFunc(edges, func(p, q [2]uint32) int {
		if p[0] != q[0] {
			return int(p[0]) - int(q[0])
		}
		return int(p[1]) - int(q[1])
	})
	return slices.Compact(edges)
}

// DrawMesh draws every edge whose endpoints are both in front of the
// camera.
func DrawMesh(c *Canvas, cam *Camera, positions []pbd.Vec3, edges [][2]uint32) {
	if c == nil || cam == nil {
		return
	}
	w, h := c.Dots()
	for _, e := range edges {
		if int(e[0]) >= len(positions) || int(e[1]) >= len(positions) {
			continue
		}
		x0, y0, _, ok0 := cam.Project(positions[e[0]], w, h)
		x1, y1, _, ok1 := cam.Project(positions[e[1]], w, h)
		if ok0 && ok1 {
			c.DrawLine(x0, y0, x1, y1)
		}
	}
}

// DrawMarkers marks the listed particles.
func DrawMarkers(c *Canvas, cam *Camera, positions []pbd.Vec3, idx ...uint32) {
	w, h := c.Dots()
	for _, i := range idx {
		if int(i) >= len(positions) {
			continue
		}
		if x, y, _, ok := cam.Project(positions[i], w, h); ok {
			c.DrawMarker(x, y)
		}
	}
}
