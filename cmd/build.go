package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/achilleasa/aabbtree/asset/archive"
	"github.com/achilleasa/aabbtree/asset/compiler/bvh"
	"github.com/achilleasa/aabbtree/asset/scene/reader"
	"github.com/urfave/cli"
)

// Build a BVH for each scene argument and write it to a tree archive.
func BuildTree(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return errors.New("missing scene file argument")
	}
	if ctx.String("out") != "" && ctx.NArg() > 1 {
		return errors.New("the out flag can only be used with a single scene file")
	}

	opts := bvh.DefaultOptions()
	if cfgFile := ctx.String("config"); cfgFile != "" {
		var err error
		if opts, err = bvh.LoadOptions(cfgFile); err != nil {
			return err
		}
	}
	if ctx.IsSet("buckets") {
		opts.Buckets = ctx.Int("buckets")
	}
	if ctx.IsSet("traversal-cost") {
		opts.TraversalCost = float32(ctx.Float64("traversal-cost"))
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		sceneFile := ctx.Args().Get(idx)

		logger.Noticef("parsing scene: %s", sceneFile)
		sc, err := reader.ReadScene(sceneFile)
		if err != nil {
			return err
		}
		logger.Noticef("scene information:\n%s", sc.Stats())

		start := time.Now()
		tree, err := bvh.Build(sc, opts)
		if err != nil {
			return err
		}
		if err = tree.Validate(); err != nil {
			return err
		}
		logger.Noticef("built tree in %d ms", time.Since(start).Nanoseconds()/1e6)
		logger.Noticef("tree information:\n%s", tree.StatsTable(opts.TraversalCost))

		outFile := ctx.String("out")
		if outFile == "" {
			outFile = archiveName(sceneFile)
		}
		if err = archive.WriteTree(tree, outFile); err != nil {
			return err
		}
	}

	return nil
}

// Derive the archive filename for a scene by replacing its extension.
func archiveName(sceneFile string) string {
	// Remote scenes are written to the working directory.
	if strings.Contains(sceneFile, "://") {
		sceneFile = filepath.Base(sceneFile)
	}
	return strings.TrimSuffix(sceneFile, filepath.Ext(sceneFile)) + ".zip"
}
