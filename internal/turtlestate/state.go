// Package turtlestate holds a single robot's pose and bound voxel world,
// and coalesces mutations inside one operator operation into a single
// crash-safe save.
package turtlestate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"turtled/internal/direction"
	"turtled/internal/turtleerr"
	"turtled/internal/voxelworld"
)

// Pose is a robot's authoritative position and facing.
type Pose struct {
	UUID     uuid.UUID
	X, Y, Z  int32
	Facing   direction.Direction
}

// poseFile is the on-disk JSON shape of the pose file, with capitalized
// rotation names as specified for the persisted format.
type poseFile struct {
	UUID     string `json:"uuid"`
	X        int32  `json:"x"`
	Y        int32  `json:"y"`
	Z        int32  `json:"z"`
	Rotation string `json:"rotation"`
}

var rotationNames = map[direction.Direction]string{
	direction.Forward:  "Forward",
	direction.Right:    "Right",
	direction.Backward: "Backward",
	direction.Left:     "Left",
}

var rotationValues = map[string]direction.Direction{
	"Forward":  direction.Forward,
	"Right":    direction.Right,
	"Backward": direction.Backward,
	"Left":     direction.Left,
}

// State owns a robot's pose and world store, serializing every mutation
// and the save it may trigger.
type State struct {
	mu       sync.Mutex
	dataDir  string
	pose     Pose
	world    *voxelworld.World
	snapshot []byte // cached bytes from the most recent successful save
}

func worldPath(dataDir string, id uuid.UUID) string {
	return filepath.Join(dataDir, id.String()+".world")
}

func posePath(dataDir string, id uuid.UUID) string {
	return filepath.Join(dataDir, id.String()+".json")
}

// New loads the state for id from dataDir, or creates and saves a fresh
// identity at the origin facing Forward if either file of the pair is
// missing. A corrupt pair is tolerated rather than reported as an error:
// an unreadable pose file yields a fresh state at the origin, and a
// corrupt world file keeps the saved pose with an empty world.
func New(dataDir string, id uuid.UUID) (*State, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data dir: %v", turtleerr.ErrIO, err)
	}

	s := &State{
		dataDir: dataDir,
		pose:    Pose{UUID: id, Facing: direction.Forward},
		world:   voxelworld.NewWorld(),
	}

	poseBytes, poseErr := os.ReadFile(posePath(dataDir, id))
	worldBytes, worldErr := os.ReadFile(worldPath(dataDir, id))
	if poseErr != nil || worldErr != nil {
		s.snapshot = s.world.Snapshot()
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var pf poseFile
	if err := json.Unmarshal(poseBytes, &pf); err != nil {
		s.snapshot = s.world.Snapshot()
		return s, nil
	}
	facing, ok := rotationValues[pf.Rotation]
	if !ok {
		s.snapshot = s.world.Snapshot()
		return s, nil
	}
	w, err := voxelworld.Load(worldBytes)
	if err != nil {
		// Corrupt world file: keep the pose, fall back to an empty world.
		s.pose = Pose{UUID: id, X: pf.X, Y: pf.Y, Z: pf.Z, Facing: facing}
		s.snapshot = s.world.Snapshot()
		return s, nil
	}

	s.pose = Pose{UUID: id, X: pf.X, Y: pf.Y, Z: pf.Z, Facing: facing}
	s.world = w
	s.snapshot = worldBytes
	return s, nil
}

// Inspect loads id's pose and world summary from dataDir without
// creating or mutating anything on disk, for offline tooling that wants
// to look at a robot's state without a live session. It reports
// turtleerr.ErrNotFound if no pair exists for id.
func Inspect(dataDir string, id uuid.UUID) (Pose, *voxelworld.World, error) {
	poseBytes, poseErr := os.ReadFile(posePath(dataDir, id))
	worldBytes, worldErr := os.ReadFile(worldPath(dataDir, id))
	if poseErr != nil || worldErr != nil {
		return Pose{}, nil, turtleerr.ErrNotFound
	}

	var pf poseFile
	if err := json.Unmarshal(poseBytes, &pf); err != nil {
		return Pose{}, nil, fmt.Errorf("%w: parsing pose file: %v", turtleerr.ErrCodec, err)
	}
	facing, ok := rotationValues[pf.Rotation]
	if !ok {
		return Pose{}, nil, fmt.Errorf("%w: unknown rotation %q", turtleerr.ErrCodec, pf.Rotation)
	}
	w, err := voxelworld.Load(worldBytes)
	if err != nil {
		return Pose{}, nil, err
	}

	return Pose{UUID: id, X: pf.X, Y: pf.Y, Z: pf.Z, Facing: facing}, w, nil
}

// Pose returns a copy of the current pose.
func (s *State) Pose() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// WorldSnapshot returns the bytes cached from the most recent successful
// save. Readers never touch disk.
func (s *State) WorldSnapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// WorldSummary reports chunk/voxel/palette counts for inspection tooling.
func (s *State) WorldSummary() (chunks, nonAir, paletteSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Summary()
}

// Mutate runs fn with exclusive access to the pose and world, and saves
// once iff fn reports a change and no error. This is the single point
// where a sequence of pose/world edits inside one operator operation
// coalesces into one save.
func (s *State) Mutate(fn func(pose *Pose, world *voxelworld.World) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := fn(&s.pose, s.world)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.saveLocked()
}

// saveLocked performs the two-phase atomic save: write both files to
// uniquely-named temps in dataDir, fsync each, then rename each into
// place. Must be called with mu held.
func (s *State) saveLocked() error {
	worldBytes := s.world.Snapshot()
	poseBytes, err := json.Marshal(poseFile{
		UUID:     s.pose.UUID.String(),
		X:        s.pose.X,
		Y:        s.pose.Y,
		Z:        s.pose.Z,
		Rotation: rotationNames[s.pose.Facing],
	})
	if err != nil {
		return fmt.Errorf("%w: marshaling pose: %v", turtleerr.ErrCodec, err)
	}

	worldTmp, err := writeTemp(s.dataDir, s.pose.UUID.String()+".world", worldBytes)
	if err != nil {
		return err
	}
	poseTmp, err := writeTemp(s.dataDir, s.pose.UUID.String()+".json", poseBytes)
	if err != nil {
		os.Remove(worldTmp)
		return err
	}

	if err := os.Rename(worldTmp, worldPath(s.dataDir, s.pose.UUID)); err != nil {
		os.Remove(worldTmp)
		os.Remove(poseTmp)
		return fmt.Errorf("%w: renaming world file: %v", turtleerr.ErrIO, err)
	}
	if err := os.Rename(poseTmp, posePath(s.dataDir, s.pose.UUID)); err != nil {
		os.Remove(poseTmp)
		return fmt.Errorf("%w: renaming pose file: %v", turtleerr.ErrIO, err)
	}

	s.snapshot = worldBytes
	return nil
}

func writeTemp(dir, baseName string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, baseName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %v", turtleerr.ErrIO, err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("%w: writing temp file: %v", turtleerr.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("%w: syncing temp file: %v", turtleerr.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("%w: closing temp file: %v", turtleerr.ErrIO, err)
	}
	return name, nil
}
