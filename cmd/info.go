package cmd

import (
	"errors"
	"fmt"

	"github.com/achilleasa/aabbtree/asset/archive"
	"github.com/achilleasa/aabbtree/asset/compiler/bvh"
	"github.com/urfave/cli"
)

// Display statistics for a tree archive.
func TreeInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing tree archive argument")
	}

	tree, err := archive.ReadTree(ctx.Args().First())
	if err != nil {
		return err
	}
	if err = tree.Validate(); err != nil {
		return err
	}

	cost := float32(ctx.Float64("traversal-cost"))
	if cost <= 0 {
		cost = bvh.DefaultTraversalCost
	}

	bounds := tree.Bounds()
	fmt.Printf("tree bounds: min %v, max %v\n", bounds[0], bounds[1])
	fmt.Print(tree.StatsTable(cost))
	return nil
}
