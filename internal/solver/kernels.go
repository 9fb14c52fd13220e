package solver

import (
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/drive"
	"github.com/san-kum/clothsim/internal/pbd"
)

// Parameter block layout, one 32-bit word each.
const (
	paramDt = iota
	paramGravity
	paramCompliance
	paramIterations
	paramDriven
	paramYOffset
	paramAmplitude
	paramOmega
	paramTime
	paramNumVerts
	paramDriverOn

	paramWords = 16
)

// vec4 stride of the position buffers.
const stride = 4

func loadVec(b *compute.Buffer, i int) pbd.Vec3 {
	o := i * stride
	return pbd.Vec3{X: b.Float(o), Y: b.Float(o + 1), Z: b.Float(o + 2)}
}

func storeVec(b *compute.Buffer, i int, v pbd.Vec3) {
	o := i * stride
	b.SetFloat(o, v.X)
	b.SetFloat(o+1, v.Y)
	b.SetFloat(o+2, v.Z)
}

// integrateKernel bindings: positions, prev, invMass, params.
func integrateKernel(gid int, b compute.Bindings) {
	pos, prev, inv, params := b[0], b[1], b[2], b[3]
	if gid >= int(params.Uint(paramNumVerts)) {
		return
	}
	p := loadVec(pos, gid)
	if inv.Float(gid) == 0 {
		storeVec(prev, gid, p)
		return
	}
	h := params.Float(paramDt)
	accel := pbd.Vec3{Y: params.Float(paramGravity)}
	next := p.Add(p.Sub(loadVec(prev, gid))).Add(accel.Scale(h * h))
	storeVec(prev, gid, p)
	storeVec(pos, gid, next)
}

// oscillateKernel bindings: positions, invMass, params. One work-item.
func oscillateKernel(gid int, b compute.Bindings) {
	pos, inv, params := b[0], b[1], b[2]
	if gid != 0 || params.Uint(paramDriverOn) == 0 {
		return
	}
	i := int(params.Uint(paramDriven))
	if inv.Float(i) == 0 {
		return
	}
	y := drive.Height(
		params.Float(paramYOffset),
		params.Float(paramAmplitude),
		params.Float(paramOmega),
		params.Float(paramTime),
	)
	pos.SetFloat(i*stride+1, y)
}

// constrainKernel bindings: positions, invMass, packed edge group. Work-items
// of one dispatch touch disjoint vertices.
func constrainKernel(gid int, b compute.Bindings) {
	pos, inv, edges := b[0], b[1], b[2]
	o := gid * 4
	if o+2 >= edges.Len() {
		return
	}
	i, j := int(edges.Uint(o)), int(edges.Uint(o+1))
	rest := edges.Float(o + 2)

	wa, wb := inv.Float(i), inv.Float(j)
	w := wa + wb
	if w == 0 {
		return
	}
	a, c := loadVec(pos, i), loadVec(pos, j)
	dir := a.Sub(c)
	l := dir.Length()
	if l < pbd.MinLength {
		l = pbd.MinLength
	}
	n := dir.Scale(1 / l)
	corr := (l - rest) / w
	if wa > 0 {
		storeVec(pos, i, a.Sub(n.Scale(corr*wa)))
	}
	if wb > 0 {
		storeVec(pos, j, c.Add(n.Scale(corr*wb)))
	}
}
