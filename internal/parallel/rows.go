package parallel

// DefaultBandHeight is the number of rows handed to a worker at once.
const DefaultBandHeight = 16

// Band is a half-open row range [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Bands splits height rows into bands of at most bandHeight rows.
func Bands(height, bandHeight int) []Band {
	if height <= 0 {
		return nil
	}
	if bandHeight <= 0 {
		bandHeight = DefaultBandHeight
	}
	bands := make([]Band, 0, (height+bandHeight-1)/bandHeight)
	for y := 0; y < height; y += bandHeight {
		bands = append(bands, Band{Y0: y, Y1: min(y+bandHeight, height)})
	}
	return bands
}

// Rows runs fn over every band of height rows and waits for completion.
// A nil pool runs the bands sequentially on the calling goroutine.
func Rows(p *WorkerPool, height int, fn func(y0, y1 int)) {
	bands := Bands(height, DefaultBandHeight)
	if p == nil || len(bands) == 1 {
		for _, b := range bands {
			fn(b.Y0, b.Y1)
		}
		return
	}

	p.run(bands, fn)
}
