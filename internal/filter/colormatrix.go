// Package filter provides per-pixel color filters applied to mirror output.
package filter

import (
	"math"

	"github.com/gogpu/gg"
)

// ColorMatrix is a 4x5 color transformation matrix:
//
//	[R']   [a00 a01 a02 a03 a04]   [R]
//	[G'] = [a10 a11 a12 a13 a14] * [G]
//	[B']   [a20 a21 a22 a23 a24]   [B]
//	[A']   [a30 a31 a32 a33 a34]   [A]
//	                               [1]
//
// Channels are straight alpha in [0, 255]; the fifth column is a bias.
type ColorMatrix [20]float32

// Identity returns the matrix that leaves colors unchanged.
func Identity() ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// HueRotate returns the hue-rotate(degrees) matrix with the luminance
// weights used by CSS filters.
func HueRotate(degrees float64) ColorMatrix {
	rad := degrees * math.Pi / 180
	cos := float32(math.Cos(rad))
	sin := float32(math.Sin(rad))

	const (
		lumR = 0.213
		lumG = 0.715
		lumB = 0.072
	)

	return ColorMatrix{
		lumR + cos*(1-lumR) + sin*(-lumR), lumG + cos*(-lumG) + sin*(-lumG), lumB + cos*(-lumB) + sin*(1-lumB), 0, 0,
		lumR + cos*(-lumR) + sin*(0.143), lumG + cos*(1-lumG) + sin*(0.140), lumB + cos*(-lumB) + sin*(-0.283), 0, 0,
		lumR + cos*(-lumR) + sin*(-(1 - lumR)), lumG + cos*(-lumG) + sin*(lumG), lumB + cos*(1-lumB) + sin*(lumB), 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Opacity returns a matrix that scales alpha by factor.
func Opacity(factor float32) ColorMatrix {
	m := Identity()
	m[18] = factor
	return m
}

// IsIdentity reports whether m leaves every color unchanged.
func (m *ColorMatrix) IsIdentity() bool {
	return *m == Identity()
}

// Multiply returns the matrix that applies m first, then other.
func (m *ColorMatrix) Multiply(other *ColorMatrix) ColorMatrix {
	var r ColorMatrix
	a, b := other, m
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[row*5+k] * b[k*5+col]
			}
			r[row*5+col] = sum
		}
		r[row*5+4] = a[row*5+0]*b[4] + a[row*5+1]*b[9] +
			a[row*5+2]*b[14] + a[row*5+3]*b[19] + a[row*5+4]
	}
	return r
}

// ApplyRows transforms rows [y0, y1) of pm in place. Fully transparent
// pixels are skipped. Disjoint row ranges may be processed concurrently.
func (m *ColorMatrix) ApplyRows(pm *gg.Pixmap, y0, y1 int) {
	if pm == nil {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, pm.Height())

	data := pm.Data()
	stride := pm.Width() * 4
	for i := y0 * stride; i < y1*stride; i += 4 {
		a := float32(data[i+3])
		if a == 0 {
			continue
		}
		r := float32(data[i+0])
		g := float32(data[i+1])
		b := float32(data[i+2])

		data[i+0] = clampUint8(m[0]*r + m[1]*g + m[2]*b + m[3]*a + m[4])
		data[i+1] = clampUint8(m[5]*r + m[6]*g + m[7]*b + m[8]*a + m[9])
		data[i+2] = clampUint8(m[10]*r + m[11]*g + m[12]*b + m[13]*a + m[14])
		data[i+3] = clampUint8(m[15]*r + m[16]*g + m[17]*b + m[18]*a + m[19])
	}
}

// Apply transforms every pixel of pm in place.
func (m *ColorMatrix) Apply(pm *gg.Pixmap) {
	if pm == nil {
		return
	}
	m.ApplyRows(pm, 0, pm.Height())
}

func clampUint8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
