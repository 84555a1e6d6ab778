// Package turtleerr defines the finite set of error kinds core operations
// report. Apart from the context error a canceled Submit returns, every
// error a caller outside this module observes is one of these sentinels,
// or wraps one via fmt.Errorf's %w so errors.Is still matches.
package turtleerr

import "errors"

var (
	// Transport errors. ErrWsClosed ends the owning session. A Submit that
	// fails with ErrTimeOut or ErrRequestSendError leaves the session open:
	// the multiplexer drains a late reply after a timeout and keeps serving
	// later requests.
	ErrWsClosed         = errors.New("session: websocket closed")
	ErrTimeOut          = errors.New("session: timed out")
	ErrInvalidResponse  = errors.New("session: invalid response frame")
	ErrRequestSendError = errors.New("session: cannot enqueue request")

	// Protocol errors: the robot replied, just not the way we expected.
	ErrCannotMove            = errors.New("turtle: cannot move, blocked")
	ErrInvalidTurtleResponse = errors.New("turtle: unexpected move response")
	ErrNotImplemented        = errors.New("turtle: destroy side not implemented")
	ErrUnexpectedResponse    = errors.New("turtle: unexpected destroy response")

	// State errors: the operation violates a core invariant.
	ErrCoordOutOfChunk  = errors.New("voxelworld: coordinate does not belong to chunk")
	ErrAlreadyAir       = errors.New("voxelworld: voxel is already air")
	ErrNoSuchChunk      = errors.New("voxelworld: chunk does not exist")
	ErrYRange           = errors.New("voxelworld: y coordinate does not fit chunk y range")
	ErrPaletteOverflow  = errors.New("voxelworld: palette index exceeds 16-bit voxel width")
	ErrLocalOutOfRange  = errors.New("voxelworld: local coordinate out of [0,15]")
	ErrInvalidDirection = errors.New("direction: invalid value")

	// Codec errors: bytes or JSON would not parse.
	ErrCodec = errors.New("codec: malformed data")

	// IO errors: filesystem trouble. In-memory state is retained.
	ErrIO = errors.New("io: persistence failure")

	// Operator-addressable errors.
	ErrNotFound         = errors.New("operator: robot not found")
	ErrBadRequest       = errors.New("operator: invalid request")
	ErrAlreadyConnected = errors.New("registry: robot already has a live session")
)
