// Package seahash implements the SeaHash 64-bit hash used to derive a
// deterministic display color for a block name. The algorithm (the diffuse
// step, the four-lane state, the seed constants) mirrors the public SeaHash
// reference design the original backend used via the Rust seahash crate;
// see DESIGN.md for why it is hand-ported here rather than imported.
package seahash

import "encoding/binary"

const bufferSize = 4 * 8

const (
	seed1 uint64 = 0x16f11fe89b0d677c
	seed2 uint64 = 0xb480a793d8e6c86c
	seed3 uint64 = 0x6fe2e5aaf078ebc9
	seed4 uint64 = 0x14f994a4c5259381

	diffuseMul uint64 = 0x6eed0e9da4d94a4f
)

// diffuse is SeaHash's mixing step: two multiplications by a fixed
// constant with a self-shift xor sandwiched between them.
func diffuse(x uint64) uint64 {
	x *= diffuseMul
	a := x >> 32
	b := x >> 60
	x ^= a >> b
	x *= diffuseMul
	return x
}

func readU64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// Sum64 computes the SeaHash digest of buf.
func Sum64(buf []byte) uint64 {
	a, b, c, d := seed1, seed2, seed3, seed4

	n := len(buf)
	i := 0
	for ; i+bufferSize <= n; i += bufferSize {
		chunk := buf[i : i+bufferSize]
		a = diffuse(a ^ readU64(chunk[0:8]))
		b = diffuse(b ^ readU64(chunk[8:16]))
		c = diffuse(c ^ readU64(chunk[16:24]))
		d = diffuse(d ^ readU64(chunk[24:32]))
	}

	lanes := [4]uint64{a, b, c, d}
	lane := 0
	rem := buf[i:]
	for len(rem) > 0 {
		var word uint64
		if len(rem) >= 8 {
			word = readU64(rem[:8])
			rem = rem[8:]
		} else {
			var tail [8]byte
			copy(tail[:], rem)
			word = readU64(tail[:])
			rem = nil
		}
		lanes[lane] = diffuse(lanes[lane] ^ word)
		lane = (lane + 1) % 4
	}

	hash := lanes[0] ^ lanes[1] ^ lanes[2] ^ lanes[3]
	return diffuse(hash ^ uint64(n))
}

// ColorOf derives the deterministic display color for a block name: the
// 0th, 4th and 7th bytes of the little-endian 64-bit SeaHash of its UTF-8
// bytes.
func ColorOf(name string) (r, g, b byte) {
	h := Sum64([]byte(name))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h)
	return buf[0], buf[4], buf[7]
}
