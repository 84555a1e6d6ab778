package voxelworld

import (
	"errors"
	"testing"

	"turtled/internal/turtleerr"
)

func TestPaletteInternIdempotent(t *testing.T) {
	p := NewPalette()
	if p.Len() != 1 {
		t.Fatalf("NewPalette Len() = %d, want 1 (air sentinel)", p.Len())
	}
	a := p.Intern("minecraft:stone")
	b := p.Intern("minecraft:stone")
	if a != b {
		t.Errorf("Intern not idempotent: %d != %d", a, b)
	}
	name, ok := p.NameOf(a)
	if !ok || name != "minecraft:stone" {
		t.Errorf("NameOf(%d) = %q, %v, want minecraft:stone, true", a, name, ok)
	}
}

func TestPaletteAirIsIndexZero(t *testing.T) {
	p := NewPalette()
	name, ok := p.NameOf(0)
	if !ok || name != airName {
		t.Errorf("NameOf(0) = %q, %v, want %q, true", name, ok, airName)
	}
}

func TestChunkOfGlobalProperty(t *testing.T) {
	cases := []struct {
		x, y, z int32
		want    ChunkLocation
	}{
		{0, 0, 0, ChunkLocation{0, 0, 0}},
		{15, 15, 15, ChunkLocation{0, 0, 0}},
		{16, 16, 16, ChunkLocation{1, 1, 1}},
		{-1, -1, -1, ChunkLocation{-1, -1, -1}},
		{-16, -16, -16, ChunkLocation{-1, -1, -1}},
		{-17, 0, 0, ChunkLocation{-2, 0, 0}},
	}
	for _, tc := range cases {
		got, err := ChunkOfGlobal(tc.x, tc.y, tc.z)
		if err != nil {
			t.Fatalf("ChunkOfGlobal(%d,%d,%d) error: %v", tc.x, tc.y, tc.z, err)
		}
		if got != tc.want {
			t.Errorf("ChunkOfGlobal(%d,%d,%d) = %+v, want %+v", tc.x, tc.y, tc.z, got, tc.want)
		}
	}
}

func TestChunkOfGlobalYRangeError(t *testing.T) {
	_, err := ChunkOfGlobal(0, 1<<20, 0)
	if !errors.Is(err, turtleerr.ErrYRange) {
		t.Fatalf("ChunkOfGlobal with huge y: err = %v, want ErrYRange", err)
	}
}

func TestSetAndGetBlockGlobal(t *testing.T) {
	w := NewWorld()
	if err := w.SetBlockGlobal(5, 10, 5, "minecraft:stone"); err != nil {
		t.Fatalf("SetBlockGlobal error: %v", err)
	}
	name, err := w.BlockNameAt(5, 10, 5)
	if err != nil {
		t.Fatalf("BlockNameAt error: %v", err)
	}
	if name != "minecraft:stone" {
		t.Errorf("BlockNameAt = %q, want minecraft:stone", name)
	}
}

func TestBlockNameAtUnloadedChunkIsAir(t *testing.T) {
	w := NewWorld()
	name, err := w.BlockNameAt(100, 100, 100)
	if err != nil {
		t.Fatalf("BlockNameAt error: %v", err)
	}
	if name != airName {
		t.Errorf("BlockNameAt unloaded chunk = %q, want %q", name, airName)
	}
}

func TestSetAirGlobalNoSuchChunk(t *testing.T) {
	w := NewWorld()
	err := w.SetAirGlobal(1, 1, 1)
	if !errors.Is(err, turtleerr.ErrNoSuchChunk) {
		t.Fatalf("SetAirGlobal on unloaded chunk: err = %v, want ErrNoSuchChunk", err)
	}
}

func TestSetAirGlobalAlreadyAir(t *testing.T) {
	w := NewWorld()
	w.GetOrCreateChunk(ChunkLocation{0, 0, 0})
	err := w.SetAirGlobal(0, 0, 0)
	if !errors.Is(err, turtleerr.ErrAlreadyAir) {
		t.Fatalf("SetAirGlobal on air voxel: err = %v, want ErrAlreadyAir", err)
	}
}

func TestSnapshotLoadRoundTrip(t *testing.T) {
	w := NewWorld()
	blocks := []struct {
		x, y, z int32
		name    string
	}{
		{0, 0, 0, "minecraft:stone"},
		{1, 0, 0, "minecraft:dirt"},
		{-5, 16, 3, "minecraft:cobblestone"},
		{20, -20, 20, "minecraft:stone"},
	}
	for _, b := range blocks {
		if err := w.SetBlockGlobal(b.x, b.y, b.z, b.name); err != nil {
			t.Fatalf("SetBlockGlobal(%v) error: %v", b, err)
		}
	}

	data := w.Snapshot()
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	for _, b := range blocks {
		name, err := loaded.BlockNameAt(b.x, b.y, b.z)
		if err != nil {
			t.Fatalf("BlockNameAt(%v) error: %v", b, err)
		}
		if name != b.name {
			t.Errorf("BlockNameAt(%d,%d,%d) = %q, want %q", b.x, b.y, b.z, name, b.name)
		}
	}
	if loaded.ChunkCount() != w.ChunkCount() {
		t.Errorf("ChunkCount mismatch: got %d, want %d", loaded.ChunkCount(), w.ChunkCount())
	}
	if loaded.Palette.Len() != w.Palette.Len() {
		t.Errorf("Palette length mismatch: got %d, want %d", loaded.Palette.Len(), w.Palette.Len())
	}
}

func TestSnapshotEmptyWorldRoundTrip(t *testing.T) {
	w := NewWorld()
	data := w.Snapshot()
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.ChunkCount() != 0 {
		t.Errorf("ChunkCount = %d, want 0", loaded.ChunkCount())
	}
	if loaded.Palette.Len() != 1 {
		t.Errorf("Palette.Len() = %d, want 1", loaded.Palette.Len())
	}
}

func TestLoadTruncatedDataReturnsCodecError(t *testing.T) {
	w := NewWorld()
	_ = w.SetBlockGlobal(0, 0, 0, "minecraft:stone")
	data := w.Snapshot()

	for _, cut := range []int{0, 1, 4, len(data) / 2, len(data) - 1} {
		if cut > len(data) {
			continue
		}
		_, err := Load(data[:cut])
		if err == nil {
			t.Errorf("Load(truncated to %d bytes) succeeded, want error", cut)
			continue
		}
		if !errors.Is(err, turtleerr.ErrCodec) {
			t.Errorf("Load(truncated to %d bytes) error = %v, want ErrCodec", cut, err)
		}
	}
}

func TestLoadGarbageDataReturnsCodecError(t *testing.T) {
	garbage := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01, 0x02}
	_, err := Load(garbage)
	if err == nil {
		t.Fatal("Load(garbage) succeeded, want error")
	}
	if !errors.Is(err, turtleerr.ErrCodec) {
		t.Errorf("Load(garbage) error = %v, want ErrCodec", err)
	}
}

func TestLoadHugeChunkCountReturnsCodecError(t *testing.T) {
	w := NewWorld()
	_ = w.SetBlockGlobal(0, 0, 0, "minecraft:stone")
	data := w.Snapshot()

	// Overwrite the chunk_len field (immediately after the palette) with a
	// value far larger than the remaining bytes could possibly encode.
	paletteEnd := 8 + 8 + len(airName) + 8 + len("minecraft:stone")
	corrupt := append([]byte(nil), data[:paletteEnd]...)
	corrupt = append(corrupt, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f)

	_, err := Load(corrupt)
	if err == nil {
		t.Fatal("Load(huge chunk count) succeeded, want error")
	}
	if !errors.Is(err, turtleerr.ErrCodec) {
		t.Errorf("Load(huge chunk count) error = %v, want ErrCodec", err)
	}
}

func TestGetMutLocalOutOfRange(t *testing.T) {
	c := newChunk(ChunkLocation{0, 0, 0})
	if _, err := c.GetMutLocal(16, 0, 0); !errors.Is(err, turtleerr.ErrLocalOutOfRange) {
		t.Fatalf("GetMutLocal(16,0,0) error = %v, want ErrLocalOutOfRange", err)
	}
	if _, err := c.GetMutLocal(-1, 0, 0); !errors.Is(err, turtleerr.ErrLocalOutOfRange) {
		t.Fatalf("GetMutLocal(-1,0,0) error = %v, want ErrLocalOutOfRange", err)
	}
}

func TestUpdateGlobalOutOfChunk(t *testing.T) {
	c := newChunk(ChunkLocation{0, 0, 0})
	err := c.UpdateGlobal(100, 100, 100, func(v *Voxel) {})
	if !errors.Is(err, turtleerr.ErrCoordOutOfChunk) {
		t.Fatalf("UpdateGlobal out of chunk: err = %v, want ErrCoordOutOfChunk", err)
	}
}

func TestSummaryCountsNonAir(t *testing.T) {
	w := NewWorld()
	_ = w.SetBlockGlobal(0, 0, 0, "minecraft:stone")
	_ = w.SetBlockGlobal(1, 0, 0, "minecraft:dirt")
	chunks, nonAir, palette := w.Summary()
	if chunks != 1 {
		t.Errorf("Summary chunks = %d, want 1", chunks)
	}
	if nonAir != 2 {
		t.Errorf("Summary nonAir = %d, want 2", nonAir)
	}
	if palette != 3 {
		t.Errorf("Summary palette = %d, want 3 (air + 2 blocks)", palette)
	}
}
