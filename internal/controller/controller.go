// Package controller translates operator intents into wire exchanges
// with one robot's Session Multiplexer and applies their effects to its
// Turtle State.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"turtled/internal/direction"
	"turtled/internal/seahash"
	"turtled/internal/session"
	"turtled/internal/turtleerr"
	"turtled/internal/turtlestate"
	"turtled/internal/voxelworld"
)

// commandTimeout is the reply deadline for every wire exchange after the
// identity handshake.
const commandTimeout = 10 * time.Second

const (
	inspectDownPayload    = `local has_block, data = turtle.inspectDown() return textutils.serialiseJSON(data)`
	inspectForwardPayload = `local has_block, data = turtle.inspect() return textutils.serialiseJSON(data)`
	inspectUpPayload      = `local has_block, data = turtle.inspectUp() return textutils.serialiseJSON(data)`
	destroyForwardPayload = `return turtle.dig()`

	// noBlockJSON is the literal (JSON-escaped) reply a turtle sends when
	// an inspection finds nothing: the string "No block to inspect"
	// including its own embedded quote marks.
	noBlockJSON = "\"No block to inspect\""
)

var movePayload = map[direction.Direction]string{
	direction.Forward:  `local a, b = turtle.forward() return a`,
	direction.Backward: `local a, b = turtle.back() return a`,
	direction.Right:    `local a, b = turtle.turnRight() return a`,
	direction.Left:     `local a, b = turtle.turnLeft() return a`,
}

// WorldChangeKind categorizes one voxel mutation reported by a scan or a
// destroy.
type WorldChangeKind int

const (
	ChangeNew WorldChangeKind = iota
	ChangeUpdate
	ChangeDelete
)

func (k WorldChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "new"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// WorldChange is one observed voxel mutation, in the owning robot's
// world coordinate space.
type WorldChange struct {
	X, Y, Z int32
	Kind    WorldChangeKind
	Name    string // empty for Delete
	R, G, B byte
}

// Controller owns a robot's Turtle State and Session Multiplexer handle.
// opMu serializes the submit-observe-mutate sequence of Move, Destroy, and
// ScanWorldChanges so two concurrent operator calls against the same robot
// can never interleave and clobber each other's pose update; it is the
// thing that actually provides the "no intra-robot data race" guarantee,
// since state.Mutate alone only protects the brief write at the end of
// that sequence, not the read-compute-observe steps before it.
type Controller struct {
	state *turtlestate.State
	mux   *session.Multiplexer
	opMu  sync.Mutex
}

// New returns a Controller driving state through mux.
func New(state *turtlestate.State, mux *session.Multiplexer) *Controller {
	return &Controller{state: state, mux: mux}
}

// Pose returns the robot's current pose.
func (c *Controller) Pose() turtlestate.Pose {
	return c.state.Pose()
}

// WorldSnapshot returns the cached binary world snapshot from the most
// recent save.
func (c *Controller) WorldSnapshot() []byte {
	return c.state.WorldSnapshot()
}

// Command passes text straight through to the robot. No state effect.
func (c *Controller) Command(ctx context.Context, text string) (string, error) {
	return c.mux.Submit(ctx, text, commandTimeout)
}

// Move sends a single movement or rotation command. On success it applies
// the pose change, then scans the cells around the robot's resulting
// position so the response carries fresh observations; the pose update
// and any scan changes are coalesced into a single save.
func (c *Controller) Move(ctx context.Context, intent direction.Direction) (turtlestate.Pose, []WorldChange, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	payload, ok := movePayload[intent]
	if !ok {
		return turtlestate.Pose{}, nil, turtleerr.ErrBadRequest
	}

	reply, err := c.mux.Submit(ctx, payload, commandTimeout)
	if err != nil {
		return turtlestate.Pose{}, nil, err
	}
	switch reply {
	case "false":
		return turtlestate.Pose{}, nil, turtleerr.ErrCannotMove
	case "true":
	default:
		return turtlestate.Pose{}, nil, turtleerr.ErrInvalidTurtleResponse
	}

	newPose := c.state.Pose()
	switch intent {
	case direction.Right, direction.Left:
		newPose.Facing, err = direction.Rotate(newPose.Facing, intent)
		if err != nil {
			return turtlestate.Pose{}, nil, err
		}
	default:
		dx, dy, dz, err := direction.MoveDelta(intent, newPose.Facing)
		if err != nil {
			return turtlestate.Pose{}, nil, err
		}
		newPose.X += dx
		newPose.Y += dy
		newPose.Z += dz
	}

	obs, err := c.observe(ctx, newPose)
	if err != nil {
		return turtlestate.Pose{}, nil, err
	}

	var changes []WorldChange
	err = c.state.Mutate(func(p *turtlestate.Pose, world *voxelworld.World) (bool, error) {
		*p = newPose
		cs, err := applyObservations(world, obs)
		if err != nil {
			return false, err
		}
		changes = cs
		// A move always moved the robot, so it always saves, even if the
		// scan found nothing new.
		return true, nil
	})
	if err != nil {
		return turtlestate.Pose{}, nil, err
	}
	return newPose, changes, nil
}

// ScanWorldChanges inspects down/forward/up around the current pose and
// applies any observed differences, saving once iff at least one change
// occurred.
func (c *Controller) ScanWorldChanges(ctx context.Context) ([]WorldChange, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	pose := c.state.Pose()
	obs, err := c.observe(ctx, pose)
	if err != nil {
		return nil, err
	}

	var changes []WorldChange
	err = c.state.Mutate(func(p *turtlestate.Pose, world *voxelworld.World) (bool, error) {
		cs, err := applyObservations(world, obs)
		if err != nil {
			return false, err
		}
		changes = cs
		return len(cs) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Destroy attempts to break the block on the given side. Only Forward is
// currently supported.
func (c *Controller) Destroy(ctx context.Context, side direction.Direction) (*WorldChange, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if side != direction.Forward {
		return nil, turtleerr.ErrNotImplemented
	}

	reply, err := c.mux.Submit(ctx, destroyForwardPayload, commandTimeout)
	if err != nil {
		return nil, err
	}
	switch reply {
	case "false":
		return nil, nil
	case "true":
	default:
		return nil, turtleerr.ErrUnexpectedResponse
	}

	pose := c.state.Pose()
	dx, dy, dz, err := direction.MoveDelta(direction.Forward, pose.Facing)
	if err != nil {
		return nil, err
	}
	tx, ty, tz := pose.X+dx, pose.Y+dy, pose.Z+dz

	var change WorldChange
	err = c.state.Mutate(func(p *turtlestate.Pose, world *voxelworld.World) (bool, error) {
		if err := setAirAllowingCreate(world, tx, ty, tz); err != nil {
			return false, err
		}
		change = WorldChange{X: tx, Y: ty, Z: tz, Kind: ChangeDelete}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// setAirAllowingCreate clears (x,y,z), creating its chunk first if it is
// not loaded. A chunk created this way is already air, so that case (and
// a cell that was already air in a loaded chunk) is a permitted no-op:
// the robot's own "true" reply is the authority that a block was there.
func setAirAllowingCreate(world *voxelworld.World, x, y, z int32) error {
	loc, err := voxelworld.ChunkOfGlobal(x, y, z)
	if err != nil {
		return err
	}
	if _, ok := world.GetChunk(loc); !ok {
		world.GetOrCreateChunk(loc)
		return nil
	}
	err = world.SetAirGlobal(x, y, z)
	if errors.Is(err, turtleerr.ErrAlreadyAir) {
		return nil
	}
	return err
}

type inventoryItem struct {
	Name string `json:"name"`
}

// Inventory reads slots 1..16 and returns each occupied slot's short item
// name: the part of its full name after the first ':'.
func (c *Controller) Inventory(ctx context.Context) ([]string, error) {
	var items []string
	for slot := 1; slot <= 16; slot++ {
		payload := fmt.Sprintf(
			`local item = turtle.getItemDetail(%d) if (item ~= nil) then return textutils.serialiseJSON(item) else return nil end`,
			slot,
		)
		reply, err := c.mux.Submit(ctx, payload, commandTimeout)
		if err != nil {
			return nil, err
		}
		if reply == "nil" {
			continue
		}
		var item inventoryItem
		if err := json.Unmarshal([]byte(reply), &item); err != nil {
			return nil, fmt.Errorf("%w: inventory reply %q", turtleerr.ErrCodec, reply)
		}
		idx := strings.Index(item.Name, ":")
		if idx < 0 {
			return nil, fmt.Errorf("%w: item name %q has no ':'", turtleerr.ErrCodec, item.Name)
		}
		items = append(items, item.Name[idx+1:])
	}
	return items, nil
}

// observation pairs a raw inspection reply with the global cell it
// describes.
type observation struct {
	x, y, z int32
	raw     string
}

// observe runs the three inspections (down, forward, up) around pose.
// Errors during any individual inspection fail the whole scan.
func (c *Controller) observe(ctx context.Context, pose turtlestate.Pose) ([3]observation, error) {
	var obs [3]observation

	down, err := c.mux.Submit(ctx, inspectDownPayload, commandTimeout)
	if err != nil {
		return obs, err
	}
	obs[0] = observation{pose.X, pose.Y - 1, pose.Z, down}

	fdx, fdy, fdz := direction.ForwardDelta(pose.Facing)
	forward, err := c.mux.Submit(ctx, inspectForwardPayload, commandTimeout)
	if err != nil {
		return obs, err
	}
	obs[1] = observation{pose.X + fdx, pose.Y + fdy, pose.Z + fdz, forward}

	up, err := c.mux.Submit(ctx, inspectUpPayload, commandTimeout)
	if err != nil {
		return obs, err
	}
	obs[2] = observation{pose.X, pose.Y + 1, pose.Z, up}

	return obs, nil
}

type inspectReply struct {
	Name string `json:"name"`
}

// applyObservations applies the scan rules to each observation in order
// (down, forward, up), returning only the changes that actually occurred.
func applyObservations(world *voxelworld.World, obs [3]observation) ([]WorldChange, error) {
	var changes []WorldChange
	for _, o := range obs {
		change, err := applyOne(world, o)
		if err != nil {
			return nil, err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

func applyOne(world *voxelworld.World, o observation) (*WorldChange, error) {
	old, err := world.VoxelIDAt(o.x, o.y, o.z)
	if err != nil {
		return nil, err
	}

	if o.raw == noBlockJSON {
		if old == 0 {
			return nil, nil
		}
		if err := world.SetAirGlobal(o.x, o.y, o.z); err != nil {
			return nil, err
		}
		return &WorldChange{X: o.x, Y: o.y, Z: o.z, Kind: ChangeDelete}, nil
	}

	var parsed inspectReply
	if err := json.Unmarshal([]byte(o.raw), &parsed); err != nil || parsed.Name == "" {
		return nil, fmt.Errorf("%w: inspect reply %q", turtleerr.ErrCodec, o.raw)
	}

	pid := world.Palette.Intern(parsed.Name)
	if pid > 0xffff {
		return nil, turtleerr.ErrPaletteOverflow
	}
	if uint16(pid) == old {
		return nil, nil
	}

	if err := world.SetBlockGlobal(o.x, o.y, o.z, parsed.Name); err != nil {
		return nil, err
	}

	kind := ChangeUpdate
	if old == 0 {
		kind = ChangeNew
	}
	r, g, b := seahash.ColorOf(parsed.Name)
	return &WorldChange{X: o.x, Y: o.y, Z: o.z, Kind: kind, Name: parsed.Name, R: r, G: g, B: b}, nil
}
