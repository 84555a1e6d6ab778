package voxelworld

import "turtled/internal/turtleerr"

// ChunkSize is the authoritative edge length of a chunk's inner volume.
const ChunkSize = 16

// PaddedSize is the edge length of the padded storage grid: one voxel of
// border on every side of the authoritative 16^3 volume, reserved for
// downstream greedy-meshing consumers so they need no neighbor queries.
const PaddedSize = ChunkSize + 2

// AirVoxel is the reserved "no block" voxel value.
const AirVoxel Voxel = 0

// Voxel is a 16-bit palette index stored in a chunk cell.
type Voxel = uint16

// ChunkLocation identifies a chunk by its chunk-space coordinates. The
// vertical axis is narrowed to int8: global y is divided by 16 and must
// fit, or callers get ErrYRange from ChunkOfGlobal.
type ChunkLocation struct {
	CX int32
	CY int8
	CZ int32
}

// Chunk is a padded 18x18x18 voxel grid. Only the inner 16^3 is
// authoritative; the outer shell stays air unless a caller chooses to
// hydrate it, which this package never does on its own.
type Chunk struct {
	Location ChunkLocation
	data     [PaddedSize * PaddedSize * PaddedSize]Voxel
}

func newChunk(loc ChunkLocation) *Chunk {
	return &Chunk{Location: loc}
}

// linearize maps local (x-fastest) coordinates into the padded grid's flat
// index, offsetting by the one-voxel border.
func linearize(lx, ly, lz int) int {
	return (lx + 1) + (ly+1)*PaddedSize + (lz+1)*PaddedSize*PaddedSize
}

// GetMutLocal returns a pointer to the voxel at local coordinates
// lx,ly,lz, each in [0,15].
func (c *Chunk) GetMutLocal(lx, ly, lz int) (*Voxel, error) {
	if lx < 0 || lx > 15 || ly < 0 || ly > 15 || lz < 0 || lz > 15 {
		return nil, turtleerr.ErrLocalOutOfRange
	}
	idx := linearize(lx, ly, lz)
	return &c.data[idx], nil
}

// localOf resolves a global coordinate to this chunk's local offsets,
// reporting whether it actually falls inside this chunk.
func (c *Chunk) localOf(x, y, z int32) (lx, ly, lz int, ok bool) {
	top := chunkOrigin(c.Location)
	dx := x - top[0]
	dy := y - top[1]
	dz := z - top[2]
	if dx < 0 || dx > 15 || dy < 0 || dy > 15 || dz < 0 || dz > 15 {
		return 0, 0, 0, false
	}
	return int(dx), int(dy), int(dz), true
}

func chunkOrigin(loc ChunkLocation) [3]int32 {
	return [3]int32{loc.CX << 4, int32(loc.CY) << 4, loc.CZ << 4}
}

// UpdateGlobal maps global coordinates to local storage and invokes f on
// the mutable voxel, failing with ErrCoordOutOfChunk if (x,y,z) does not
// belong to this chunk.
func (c *Chunk) UpdateGlobal(x, y, z int32, f func(*Voxel)) error {
	lx, ly, lz, ok := c.localOf(x, y, z)
	if !ok {
		return turtleerr.ErrCoordOutOfChunk
	}
	v, err := c.GetMutLocal(lx, ly, lz)
	if err != nil {
		return err
	}
	f(v)
	return nil
}

// SetAirGlobal sets the voxel at global (x,y,z) to air, failing with
// ErrAlreadyAir if it already is.
func (c *Chunk) SetAirGlobal(x, y, z int32) error {
	var already bool
	err := c.UpdateGlobal(x, y, z, func(v *Voxel) {
		already = *v == AirVoxel
		*v = AirVoxel
	})
	if err != nil {
		return err
	}
	if already {
		return turtleerr.ErrAlreadyAir
	}
	return nil
}

// nonAirCount returns how many of the authoritative 16^3 voxels are
// non-air, used for inspection/summary tooling.
func (c *Chunk) nonAirCount() int {
	n := 0
	for lz := 0; lz < ChunkSize; lz++ {
		for ly := 0; ly < ChunkSize; ly++ {
			for lx := 0; lx < ChunkSize; lx++ {
				if c.data[linearize(lx, ly, lz)] != AirVoxel {
					n++
				}
			}
		}
	}
	return n
}

// denseBytes extracts the authoritative 16^3 volume into the wire format's
// dense representation: 4096 little-endian u16 ids, x-fastest, then y,
// then z, with no padding.
func (c *Chunk) denseBytes() []byte {
	out := make([]byte, ChunkSize*ChunkSize*ChunkSize*2)
	i := 0
	for lz := 0; lz < ChunkSize; lz++ {
		for ly := 0; ly < ChunkSize; ly++ {
			for lx := 0; lx < ChunkSize; lx++ {
				v := c.data[linearize(lx, ly, lz)]
				out[i] = byte(v)
				out[i+1] = byte(v >> 8)
				i += 2
			}
		}
	}
	return out
}

// loadDense writes a dense 16^3 body (as produced by denseBytes) into the
// padded grid at the (lx+1, ly+1, lz+1) offset.
func (c *Chunk) loadDense(dense []byte) {
	i := 0
	for lz := 0; lz < ChunkSize; lz++ {
		for ly := 0; ly < ChunkSize; ly++ {
			for lx := 0; lx < ChunkSize; lx++ {
				v := Voxel(dense[i]) | Voxel(dense[i+1])<<8
				c.data[linearize(lx, ly, lz)] = v
				i += 2
			}
		}
	}
}
