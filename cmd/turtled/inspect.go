package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"turtled/internal/turtlestate"
)

// inspectCmd loads a <uuid>.world/<uuid>.json pair straight from the data
// directory, without a live robot session, and prints a summary. This is
// the offline counterpart of the teacher's real-time ASCII warehouse view.
var inspectCmd = &cobra.Command{
	Use:   "inspect [uuid]",
	Short: "Print a robot's saved pose and world summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid uuid %q: %w", args[0], err)
		}

		pose, world, err := turtlestate.Inspect(cfg.DataDir, id)
		if err != nil {
			return err
		}

		chunks, nonAir, paletteSize := world.Summary()
		fmt.Printf("robot:   %s\n", id)
		fmt.Printf("pose:    (%d, %d, %d) facing %s\n", pose.X, pose.Y, pose.Z, pose.Facing)
		fmt.Printf("world:   %d chunk(s), %d non-air voxel(s), %d palette entries\n", chunks, nonAir, paletteSize)
		return nil
	},
}
