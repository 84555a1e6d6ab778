package voxelworld

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"turtled/internal/turtleerr"
)

// World is the in-memory voxel store for one turtle: a sparse map of
// loaded chunks plus the shared block-name palette.
type World struct {
	Palette *Palette
	chunks  map[ChunkLocation]*Chunk
}

// NewWorld returns an empty world with a fresh, air-seeded palette.
func NewWorld() *World {
	return &World{
		Palette: NewPalette(),
		chunks:  make(map[ChunkLocation]*Chunk),
	}
}

// ChunkOfGlobal computes the chunk location owning global (x,y,z).
// y is divided into 16-high bands and narrowed to int8; out-of-range bands
// report ErrYRange rather than wrapping.
func ChunkOfGlobal(x, y, z int32) (ChunkLocation, error) {
	cx := floorDiv16(x)
	cz := floorDiv16(z)
	cyWide := floorDiv16(y)
	if cyWide < -128 || cyWide > 127 {
		return ChunkLocation{}, turtleerr.ErrYRange
	}
	return ChunkLocation{CX: cx, CY: int8(cyWide), CZ: cz}, nil
}

func floorDiv16(v int32) int32 {
	if v >= 0 {
		return v >> 4
	}
	return -(((-v - 1) >> 4) + 1)
}

// GetChunk returns the chunk at loc, or false if it is not loaded.
func (w *World) GetChunk(loc ChunkLocation) (*Chunk, bool) {
	c, ok := w.chunks[loc]
	return c, ok
}

// GetOrCreateChunk returns the chunk at loc, creating and registering an
// all-air chunk if it did not already exist.
func (w *World) GetOrCreateChunk(loc ChunkLocation) *Chunk {
	if c, ok := w.chunks[loc]; ok {
		return c
	}
	c := newChunk(loc)
	w.chunks[loc] = c
	return c
}

// SetBlockGlobal interns name into the palette and writes it into the
// chunk owning (x,y,z), creating that chunk if needed.
func (w *World) SetBlockGlobal(x, y, z int32, name string) error {
	loc, err := ChunkOfGlobal(x, y, z)
	if err != nil {
		return err
	}
	id := w.Palette.Intern(name)
	if id > 0xffff {
		return turtleerr.ErrPaletteOverflow
	}
	c := w.GetOrCreateChunk(loc)
	return c.UpdateGlobal(x, y, z, func(v *Voxel) {
		*v = Voxel(id)
	})
}

// SetAirGlobal clears the voxel at (x,y,z), failing with ErrNoSuchChunk if
// its chunk was never loaded and ErrAlreadyAir if it is already air.
func (w *World) SetAirGlobal(x, y, z int32) error {
	loc, err := ChunkOfGlobal(x, y, z)
	if err != nil {
		return err
	}
	c, ok := w.GetChunk(loc)
	if !ok {
		return turtleerr.ErrNoSuchChunk
	}
	return c.SetAirGlobal(x, y, z)
}

// BlockNameAt returns the interned block name at (x,y,z), or the air name
// if its chunk is not loaded.
func (w *World) BlockNameAt(x, y, z int32) (string, error) {
	loc, err := ChunkOfGlobal(x, y, z)
	if err != nil {
		return "", err
	}
	c, ok := w.GetChunk(loc)
	if !ok {
		return airName, nil
	}
	lx, ly, lz, ok := c.localOf(x, y, z)
	if !ok {
		return "", turtleerr.ErrCoordOutOfChunk
	}
	v, err := c.GetMutLocal(lx, ly, lz)
	if err != nil {
		return "", err
	}
	name, ok := w.Palette.NameOf(int(*v))
	if !ok {
		return "", turtleerr.ErrCodec
	}
	return name, nil
}

// VoxelIDAt returns the raw palette id stored at (x,y,z), or 0 (air) if
// the owning chunk is not loaded.
func (w *World) VoxelIDAt(x, y, z int32) (uint16, error) {
	loc, err := ChunkOfGlobal(x, y, z)
	if err != nil {
		return 0, err
	}
	c, ok := w.GetChunk(loc)
	if !ok {
		return 0, nil
	}
	lx, ly, lz, ok := c.localOf(x, y, z)
	if !ok {
		return 0, turtleerr.ErrCoordOutOfChunk
	}
	v, err := c.GetMutLocal(lx, ly, lz)
	if err != nil {
		return 0, err
	}
	return *v, nil
}

// ChunkCount reports how many chunks are loaded.
func (w *World) ChunkCount() int {
	return len(w.chunks)
}

// Summary reports the chunk count and total non-air voxel count, for the
// offline inspect tool.
func (w *World) Summary() (chunks, nonAir, paletteSize int) {
	for _, c := range w.chunks {
		nonAir += c.nonAirCount()
	}
	return len(w.chunks), nonAir, w.Palette.Len()
}

const chunkDataLen = ChunkSize * ChunkSize * ChunkSize * 2

// Snapshot encodes the world into the binary format:
//
//	u64 palette_len
//	palette_len * (u64 name_len, name_len bytes)
//	i64 chunk_len
//	chunk_len * (i32 cx, i8 cy, i32 cz, u64 data_len, data_len bytes)
func (w *World) Snapshot() []byte {
	var buf bytes.Buffer

	names := make([]string, 0, w.Palette.Len())
	for id := 0; id < w.Palette.Len(); id++ {
		name, _ := w.Palette.NameOf(id)
		names = append(names, name)
	}
	writeU64(&buf, uint64(len(names)))
	for _, name := range names {
		writeU64(&buf, uint64(len(name)))
		buf.WriteString(name)
	}

	writeI64(&buf, int64(len(w.chunks)))
	for loc, c := range w.chunks {
		writeI32(&buf, loc.CX)
		buf.WriteByte(byte(loc.CY))
		writeI32(&buf, loc.CZ)
		dense := c.denseBytes()
		writeU64(&buf, uint64(len(dense)))
		buf.Write(dense)
	}

	return buf.Bytes()
}

// Load decodes a world previously produced by Snapshot. Any structural
// defect (short read, length mismatch) is reported as ErrCodec so callers
// can fall back to a fresh world instead of crashing.
func Load(data []byte) (*World, error) {
	r := bytes.NewReader(data)

	paletteLen, err := readU64(r)
	if err != nil {
		return nil, fmt.Errorf("%w: palette length: %v", turtleerr.ErrCodec, err)
	}
	// Each entry needs at least its own 8-byte length prefix, so a
	// paletteLen bigger than the remaining bytes is corrupt. This also
	// keeps paletteLen within int range before it reaches make's cap.
	if paletteLen > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: palette length %d exceeds remaining data", turtleerr.ErrCodec, paletteLen)
	}
	names := make([]string, 0, paletteLen)
	for i := uint64(0); i < paletteLen; i++ {
		nameLen, err := readU64(r)
		if err != nil {
			return nil, fmt.Errorf("%w: name length: %v", turtleerr.ErrCodec, err)
		}
		if nameLen > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: name length %d exceeds remaining data", turtleerr.ErrCodec, nameLen)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, fmt.Errorf("%w: name bytes: %v", turtleerr.ErrCodec, err)
		}
		names = append(names, string(nameBytes))
	}
	if paletteLen == 0 || names[0] != airName {
		return nil, fmt.Errorf("%w: palette missing air sentinel at index 0", turtleerr.ErrCodec)
	}

	w := NewWorld()
	w.Palette.names = names
	w.Palette.index = make(map[string]int, len(names))
	for i, n := range names {
		w.Palette.index[n] = i
	}

	chunkLen, err := readI64(r)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk count: %v", turtleerr.ErrCodec, err)
	}
	if chunkLen < 0 {
		return nil, fmt.Errorf("%w: negative chunk count", turtleerr.ErrCodec)
	}
	// Each chunk record needs at least cx+cy+cz+data_len = 17 bytes.
	if chunkLen > int64(r.Len())/17 {
		return nil, fmt.Errorf("%w: chunk count %d exceeds remaining data", turtleerr.ErrCodec, chunkLen)
	}
	for i := int64(0); i < chunkLen; i++ {
		var cx, cz int32
		var cyByte [1]byte
		if cx, err = readI32(r); err != nil {
			return nil, fmt.Errorf("%w: chunk cx: %v", turtleerr.ErrCodec, err)
		}
		if _, err := io.ReadFull(r, cyByte[:]); err != nil {
			return nil, fmt.Errorf("%w: chunk cy: %v", turtleerr.ErrCodec, err)
		}
		if cz, err = readI32(r); err != nil {
			return nil, fmt.Errorf("%w: chunk cz: %v", turtleerr.ErrCodec, err)
		}
		dataLen, err := readU64(r)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk data length: %v", turtleerr.ErrCodec, err)
		}
		if dataLen != chunkDataLen {
			return nil, fmt.Errorf("%w: chunk data length %d, want %d", turtleerr.ErrCodec, dataLen, chunkDataLen)
		}
		dense := make([]byte, dataLen)
		if _, err := io.ReadFull(r, dense); err != nil {
			return nil, fmt.Errorf("%w: chunk data: %v", turtleerr.ErrCodec, err)
		}

		loc := ChunkLocation{CX: cx, CY: int8(cyByte[0]), CZ: cz}
		c := newChunk(loc)
		c.loadDense(dense)
		w.chunks[loc] = c
	}

	return w, nil
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	writeU64(buf, uint64(v))
}

func writeI32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readI64(r *bytes.Reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

func readI32(r *bytes.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}
