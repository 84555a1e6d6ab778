package turtlestate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"turtled/internal/direction"
	"turtled/internal/turtleerr"
	"turtled/internal/voxelworld"
)

func TestNewCreatesFreshIdentityAtOrigin(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()

	s, err := New(dir, id)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	pose := s.Pose()
	if pose.X != 0 || pose.Y != 0 || pose.Z != 0 || pose.Facing != direction.Forward {
		t.Errorf("fresh pose = %+v, want origin facing Forward", pose)
	}

	if _, err := os.Stat(worldPath(dir, id)); err != nil {
		t.Errorf("world file not created: %v", err)
	}
	if _, err := os.Stat(posePath(dir, id)); err != nil {
		t.Errorf("pose file not created: %v", err)
	}
}

func TestMutateCoalescesIntoOneSave(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	s, err := New(dir, id)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	err = s.Mutate(func(pose *Pose, world *voxelworld.World) (bool, error) {
		pose.Z -= 1
		if err := world.SetBlockGlobal(0, 0, -1, "minecraft:stone"); err != nil {
			return false, err
		}
		if err := world.SetBlockGlobal(1, 0, -1, "minecraft:dirt"); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("Mutate error: %v", err)
	}

	pose := s.Pose()
	if pose.Z != -1 {
		t.Errorf("pose.Z = %d, want -1", pose.Z)
	}

	reloaded, err := New(dir, id)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	rp := reloaded.Pose()
	if rp.Z != -1 {
		t.Errorf("reloaded pose.Z = %d, want -1", rp.Z)
	}
	_, nonAir, _ := reloaded.WorldSummary()
	if nonAir != 2 {
		t.Errorf("reloaded nonAir = %d, want 2", nonAir)
	}
}

func TestMutateNoChangeSkipsSave(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	s, err := New(dir, id)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	before := s.WorldSnapshot()

	err = s.Mutate(func(pose *Pose, world *voxelworld.World) (bool, error) {
		return false, nil
	})
	if err != nil {
		t.Fatalf("Mutate error: %v", err)
	}
	after := s.WorldSnapshot()
	if string(before) != string(after) {
		t.Errorf("snapshot changed despite no-change mutation")
	}
}

func TestMutatePropagatesErrorWithoutSaving(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	s, err := New(dir, id)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	wantErr := turtleerr.ErrYRange
	err = s.Mutate(func(pose *Pose, world *voxelworld.World) (bool, error) {
		pose.X = 7
		return true, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Mutate error = %v, want %v", err, wantErr)
	}

	reloaded, err := New(dir, id)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if x := reloaded.Pose().X; x != 0 {
		t.Errorf("reloaded pose.X = %d, want 0 (failed Mutate must not save)", x)
	}
}

func TestNewToleratesCorruptWorldFile(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()

	s, err := New(dir, id)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_ = s.Mutate(func(pose *Pose, world *voxelworld.World) (bool, error) {
		pose.X = 5
		return true, nil
	})

	// Corrupt the world file in place, simulating a crash-mangled save.
	if err := os.WriteFile(worldPath(dir, id), []byte{0x01, 0x02}, 0o644); err != nil {
		t.Fatalf("corrupting world file: %v", err)
	}

	reloaded, err := New(dir, id)
	if err != nil {
		t.Fatalf("New with corrupt world: %v", err)
	}
	pose := reloaded.Pose()
	if pose.X != 5 {
		t.Errorf("pose.X = %d, want 5 (pose should survive a corrupt world file)", pose.X)
	}
	chunks, _, _ := reloaded.WorldSummary()
	if chunks != 0 {
		t.Errorf("WorldSummary chunks = %d, want 0 (world should fall back to empty)", chunks)
	}
}

func TestNewToleratesMissingPair(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	// No files exist at all: New should create a fresh identity, not error.
	s, err := New(dir, id)
	if err != nil {
		t.Fatalf("New error on missing pair: %v", err)
	}
	if s.Pose().Facing != direction.Forward {
		t.Errorf("Pose().Facing = %v, want Forward", s.Pose().Facing)
	}
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	s, err := New(dir, id)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_ = s.Mutate(func(pose *Pose, world *voxelworld.World) (bool, error) {
		pose.X = 1
		return true, nil
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".world" && filepath.Ext(e.Name()) != ".json" {
			t.Errorf("leftover file after save: %s", e.Name())
		}
	}
}
