package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/achilleasa/aabbtree/asset/archive"
	"github.com/achilleasa/aabbtree/asset/compiler/bvh"
	"github.com/achilleasa/aabbtree/types"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Cast a single ray against a tree archive.
func QueryTree(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing tree archive argument")
	}

	origin, err := parseVec3Flag(ctx.String("origin"))
	if err != nil {
		return fmt.Errorf("invalid origin: %s", err.Error())
	}
	dir, err := parseVec3Flag(ctx.String("dir"))
	if err != nil {
		return fmt.Errorf("invalid dir: %s", err.Error())
	}
	if dir.Len() == 0 {
		return errors.New("invalid dir: direction must be non-zero")
	}

	tMax := float32(ctx.Float64("tmax"))
	if tMax <= 0 {
		tMax = math.MaxFloat32
	}

	tree, err := archive.ReadTree(ctx.Args().First())
	if err != nil {
		return err
	}

	ray := bvh.Ray{Origin: origin, Dir: dir}
	if ctx.Bool("shadow") {
		fmt.Printf("occluded: %t\n", tree.Occluded(ray, tMax))
		return nil
	}

	hit, found := tree.Intersect(ray, tMax)
	if !found {
		fmt.Println("no hit")
		return nil
	}
	fmt.Print(fmtHit(ray, hit))
	return nil
}

func fmtHit(ray bvh.Ray, hit bvh.Hit) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Triangle", "Distance", "U", "V", "Point"})
	point := ray.Origin.Add(ray.Dir.Mul(hit.T))
	table.Append([]string{
		fmt.Sprintf("%d", hit.Triangle),
		fmt.Sprintf("%g", hit.T),
		fmt.Sprintf("%g", hit.U),
		fmt.Sprintf("%g", hit.V),
		fmt.Sprintf("%g, %g, %g", point[0], point[1], point[2]),
	})
	table.Render()
	return buf.String()
}

// Parse a "x,y,z" vector argument.
func parseVec3Flag(value string) (types.Vec3, error) {
	tokens := strings.Split(value, ",")
	if len(tokens) != 3 {
		return types.Vec3{}, fmt.Errorf("expected 3 comma-separated components; got %q", value)
	}

	var v types.Vec3
	for i, tok := range tokens {
		f, err := strconv.ParseFloat(strings.TrimSpace(tok), 32)
		if err != nil {
			return types.Vec3{}, err
		}
		v[i] = float32(f)
	}
	return v, nil
}
