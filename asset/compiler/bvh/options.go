package bvh

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// Number of fixed-width centroid buckets evaluated per split.
	DefaultBuckets = 12

	// Cost of traversing a node relative to intersecting a triangle.
	DefaultTraversalCost float32 = 0.125
)

// Options tweak the SAH cost model used by the builder.
type Options struct {
	Buckets       int     `toml:"buckets"`
	TraversalCost float32 `toml:"traversal_cost"`
}

// Get the default builder options.
func DefaultOptions() Options {
	return Options{
		Buckets:       DefaultBuckets,
		TraversalCost: DefaultTraversalCost,
	}
}

// Check that the options describe a usable cost model.
func (o Options) Validate() error {
	if o.Buckets < 2 {
		return fmt.Errorf("bvh options: bucket count must be at least 2; got %d", o.Buckets)
	}
	if !(o.TraversalCost > 0) {
		return fmt.Errorf("bvh options: traversal cost must be positive; got %v", o.TraversalCost)
	}
	return nil
}

// Load builder options from a TOML file. Keys missing from the file keep
// their default values.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	md, err := toml.DecodeFile(path, &opts)
	if err != nil {
		return opts, fmt.Errorf("bvh options: could not parse %q: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return opts, fmt.Errorf("bvh options: unknown keys in %q: %s", path, strings.Join(keys, ", "))
	}

	return opts, opts.Validate()
}
