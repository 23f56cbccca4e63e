package filter

import (
	"testing"

	"github.com/gogpu/gg"
)

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestIdentity(t *testing.T) {
	m := Identity()
	if !m.IsIdentity() {
		t.Fatal("Identity().IsIdentity() = false")
	}

	pm := gg.NewPixmap(3, 3)
	pm.Clear(gg.RGBA{R: 0.2, G: 0.4, B: 0.6, A: 0.8})
	before := append([]byte(nil), pm.Data()...)

	m.Apply(pm)

	for i, v := range pm.Data() {
		if v != before[i] {
			t.Fatalf("byte %d changed: %d -> %d", i, before[i], v)
		}
	}
}

func TestHueRotate(t *testing.T) {
	tests := []struct {
		name    string
		degrees float64
		in      [4]uint8
		want    [4]uint8
		tol     int
	}{
		{"zero keeps color", 0, [4]uint8{200, 40, 10, 255}, [4]uint8{200, 40, 10, 255}, 1},
		{"full turn keeps color", 360, [4]uint8{200, 40, 10, 255}, [4]uint8{200, 40, 10, 255}, 1},
		{"gray is invariant", 123, [4]uint8{128, 128, 128, 255}, [4]uint8{128, 128, 128, 255}, 1},
		{"alpha untouched", 90, [4]uint8{128, 128, 128, 77}, [4]uint8{128, 128, 128, 77}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := gg.NewPixmap(1, 1)
			copy(pm.Data(), tt.in[:])

			m := HueRotate(tt.degrees)
			m.Apply(pm)

			for c := 0; c < 4; c++ {
				if d := absDiff(pm.Data()[c], tt.want[c]); d > tt.tol {
					t.Errorf("channel %d = %d, want %d", c, pm.Data()[c], tt.want[c])
				}
			}
		})
	}
}

func TestHueRotateChangesSaturatedColor(t *testing.T) {
	pm := gg.NewPixmap(1, 1)
	copy(pm.Data(), []uint8{255, 0, 0, 255})

	m := HueRotate(120)
	m.Apply(pm)

	if pm.Data()[0] > 128 {
		t.Errorf("red channel after 120° = %d, want it reduced", pm.Data()[0])
	}
}

func TestTransparentPixelsSkipped(t *testing.T) {
	pm := gg.NewPixmap(1, 1)
	copy(pm.Data(), []uint8{10, 20, 30, 0})

	m := HueRotate(45)
	m.Apply(pm)

	want := []uint8{10, 20, 30, 0}
	for i, v := range pm.Data() {
		if v != want[i] {
			t.Fatalf("transparent pixel modified: %v", pm.Data())
		}
	}
}

func TestMultiplyOrder(t *testing.T) {
	h := HueRotate(30)
	o := Opacity(0.5)
	combined := h.Multiply(&o)

	a := gg.NewPixmap(1, 1)
	copy(a.Data(), []uint8{200, 50, 100, 200})
	b := gg.NewPixmap(1, 1)
	copy(b.Data(), a.Data())

	h.Apply(a)
	o.Apply(a)
	combined.Apply(b)

	for c := 0; c < 4; c++ {
		if d := absDiff(a.Data()[c], b.Data()[c]); d > 1 {
			t.Errorf("channel %d: sequential %d, combined %d", c, a.Data()[c], b.Data()[c])
		}
	}
}

func TestApplyRowsBounds(t *testing.T) {
	pm := gg.NewPixmap(2, 4)
	pm.Clear(gg.RGBA{R: 1, A: 1})

	m := Opacity(0)
	m.ApplyRows(pm, 2, 10)

	if pm.Data()[3] != 255 {
		t.Error("row 0 should be untouched")
	}
	if pm.Data()[(3*2+1)*4+3] != 0 {
		t.Error("row 3 alpha should be cleared")
	}
}
