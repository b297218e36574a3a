package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/aabbtree/asset/compiler/bvh"
	"github.com/achilleasa/aabbtree/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "aabbtree"
	app.Usage = "build and query bounding volume hierarchies for triangle scenes"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, notice, warning, error)",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "write logs to a rotated file instead of stdout",
		},
		cli.IntFlag{
			Name:  "log-max-size",
			Value: 100,
			Usage: "max size in megabytes of the log file before it gets rotated",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "build a BVH for one or more scene files",
			Description: `
Parse a scene from a wavefront obj or glTF file, flatten its geometry into
world-space triangles and build a binary BVH using the surface area heuristic.

The node and triangle arrays are written in their GPU layout to a zip archive
which can be supplied as an argument to the info and query commands.`,
			ArgsUsage: "scene_file1.obj scene_file2.glb ...",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "TOML file with builder options",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "archive filename; defaults to the scene filename with a .zip extension",
				},
				cli.IntFlag{
					Name:  "buckets",
					Value: bvh.DefaultBuckets,
					Usage: "number of SAH buckets",
				},
				cli.Float64Flag{
					Name:  "traversal-cost",
					Value: float64(bvh.DefaultTraversalCost),
					Usage: "SAH node traversal cost relative to a triangle test",
				},
			},
			Action: cmd.BuildTree,
		},
		{
			Name:      "info",
			Usage:     "display statistics for a tree archive",
			ArgsUsage: "tree.zip",
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "traversal-cost",
					Value: float64(bvh.DefaultTraversalCost),
					Usage: "traversal cost used for the SAH cost estimate",
				},
			},
			Action: cmd.TreeInfo,
		},
		{
			Name:      "query",
			Usage:     "cast a ray against a tree archive",
			ArgsUsage: "tree.zip",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "origin",
					Value: "0,0,0",
					Usage: "ray origin as x,y,z",
				},
				cli.StringFlag{
					Name:  "dir",
					Value: "0,0,-1",
					Usage: "ray direction as x,y,z",
				},
				cli.Float64Flag{
					Name:  "tmax",
					Usage: "max hit distance; unbounded if not set",
				},
				cli.BoolFlag{
					Name:  "shadow",
					Usage: "only report whether the ray is occluded",
				},
			},
			Action: cmd.QueryTree,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}
