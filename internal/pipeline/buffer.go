package pipeline

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

// Stride is the number of float32 values per packed instance:
// position x, y, z followed by color r, g, b.
const Stride = 6

// Buffer is the fixed-capacity output arena of one tick. Slots 0..Count()-1
// are valid; the slot to record mapping holds only for the tick that wrote it.
type Buffer struct {
	data  []float32
	recs  []*catalog.Record
	count int

	// Time, Frame and CatalogVersion describe the tick that filled the buffer.
	Time           time.Time
	Frame          transform.Frame
	CatalogVersion uint64
}

// NewBuffer allocates an arena for capacity instances.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		data: make([]float32, capacity*Stride),
		recs: make([]*catalog.Record, capacity),
	}
}

// Cap returns the instance capacity.
func (b *Buffer) Cap() int { return len(b.recs) }

// Count returns the number of valid slots.
func (b *Buffer) Count() int { return b.count }

// Data returns the packed values of the valid slots. The slice aliases the
// arena and is overwritten by the next tick.
func (b *Buffer) Data() []float32 { return b.data[:b.count*Stride] }

// reset invalidates every slot.
func (b *Buffer) reset() {
	clear(b.recs[:b.count])
	b.count = 0
}

// put writes slot i. Slots must be written in order 0..n-1.
func (b *Buffer) put(i int, rec *catalog.Record, pos transform.Vec3, c Color) {
	o := i * Stride
	b.data[o+0] = float32(pos.X)
	b.data[o+1] = float32(pos.Y)
	b.data[o+2] = float32(pos.Z)
	b.data[o+3] = c.R
	b.data[o+4] = c.G
	b.data[o+5] = c.B
	b.recs[i] = rec
}

// RecordAt maps a slot back to the record that produced it this tick.
func (b *Buffer) RecordAt(slot int) (*catalog.Record, bool) {
	if slot < 0 || slot >= b.count {
		return nil, false
	}
	return b.recs[slot], true
}

// SlotOf returns the slot holding record id this tick.
func (b *Buffer) SlotOf(id string) (int, bool) {
	for i, rec := range b.recs[:b.count] {
		if rec.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Position returns the normalized position stored in slot.
func (b *Buffer) Position(slot int) transform.Vec3 {
	o := slot * Stride
	return transform.Vec3{X: float64(b.data[o]), Y: float64(b.data[o+1]), Z: float64(b.data[o+2])}
}

// ColorAt returns the color stored in slot.
func (b *Buffer) ColorAt(slot int) Color {
	o := slot*Stride + 3
	return Color{R: b.data[o], G: b.data[o+1], B: b.data[o+2]}
}

// Nearest returns the slot closest to p within maxDist (scene units).
func (b *Buffer) Nearest(p transform.Vec3, maxDist float64) (int, bool) {
	best, bestD := -1, maxDist
	for i := 0; i < b.count; i++ {
		if d := b.Position(i).Sub(p).Norm(); d <= bestD {
			best, bestD = i, d
		}
	}
	return best, best >= 0
}

// PickRay returns the first slot along the ray from origin in direction dir
// whose perpendicular distance from the ray is at most maxDist. Instances
// behind the origin are ignored.
func (b *Buffer) PickRay(origin, dir transform.Vec3, maxDist float64) (int, bool) {
	n := dir.Norm()
	if n == 0 || math.IsNaN(n) {
		return -1, false
	}
	dir = dir.Scale(1 / n)

	best, bestT := -1, math.Inf(1)
	for i := 0; i < b.count; i++ {
		rel := b.Position(i).Sub(origin)
		t := rel.Dot(dir)
		if t < 0 {
			continue
		}
		perp := rel.Sub(dir.Scale(t)).Norm()
		if perp <= maxDist && t < bestT {
			best, bestT = i, t
		}
	}
	return best, best >= 0
}

// IDs returns the record IDs of the valid slots in slot order.
func (b *Buffer) IDs() []string {
	ids := make([]string, b.count)
	for i, rec := range b.recs[:b.count] {
		ids[i] = rec.ID
	}
	return ids
}

// CopyTo copies the valid slots and tick metadata into dst, growing it if
// needed.
func (b *Buffer) CopyTo(dst *Buffer) {
	if dst.Cap() < b.count {
		*dst = *NewBuffer(b.Cap())
	}
	dst.reset()
	copy(dst.data, b.Data())
	copy(dst.recs, b.recs[:b.count])
	dst.count = b.count
	dst.Time, dst.Frame, dst.CatalogVersion = b.Time, b.Frame, b.CatalogVersion
}

// WriteTo writes the binary frame encoding: a little-endian uint32 count, an
// int64 tick time in Unix milliseconds, then count*Stride float32 values.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	hdr := make([]byte, 12)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(b.count))
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(b.Time.UnixMilli()))
	n, err := w.Write(hdr)
	if err != nil {
		return int64(n), err
	}
	if err := binary.Write(w, binary.LittleEndian, b.Data()); err != nil {
		return int64(n), err
	}
	return int64(n + 4*len(b.Data())), nil
}
