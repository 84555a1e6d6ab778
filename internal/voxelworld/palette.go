package voxelworld

// airName is the reserved name for palette index 0.
const airName = "minecraft:air"

// Palette is a world's ordered, monotonically-growing interning table of
// block names. Index 0 is always airName.
type Palette struct {
	names []string
	index map[string]int
}

// NewPalette returns a palette seeded with the air sentinel at index 0.
func NewPalette() *Palette {
	return &Palette{
		names: []string{airName},
		index: map[string]int{airName: 0},
	}
}

// Intern returns the existing index for name, or appends it and returns the
// new index. Repeated calls with the same name are idempotent.
func (p *Palette) Intern(name string) int {
	if id, ok := p.index[name]; ok {
		return id
	}
	id := len(p.names)
	p.names = append(p.names, name)
	p.index[name] = id
	return id
}

// NameOf returns the block name at id, or false if id is out of range.
func (p *Palette) NameOf(id int) (string, bool) {
	if id < 0 || id >= len(p.names) {
		return "", false
	}
	return p.names[id], true
}

// Len returns the number of interned names, including the air sentinel.
func (p *Palette) Len() int {
	return len(p.names)
}
