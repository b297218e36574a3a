package bvh

import (
	"math"
	"time"

	"github.com/achilleasa/aabbtree/asset/scene"
	"github.com/achilleasa/aabbtree/log"
	"github.com/achilleasa/aabbtree/types"
)

type Axis uint8

const (
	XAxis Axis = iota
	YAxis
	ZAxis
)

type side uint8

const (
	leftSide side = iota
	rightSide
)

// Node index used by slot references that target the tree root.
const rootNode int32 = -1

// A slotRef identifies the int32 field that receives the result of a build
// step: either the tree root or a child field of an allocated node. Slots are
// resolved by index so they stay valid regardless of node storage.
type slotRef struct {
	node int32
	side side
}

// A buildStep partitions leafs[beg:end] and stores the resulting reference
// into slot.
type buildStep struct {
	slot     slotRef
	beg, end int
	depth    int
}

type bucket struct {
	count int
	bbox  [2]types.Vec3
}

type stats struct {
	maxDepth       int
	sahSplits      int
	fallbackSplits int
}

type builder struct {
	logger log.Logger
	opts   Options

	// The build owns a private copy of the leafs which gets reordered in place.
	leafs []Leaf
	tree  *Tree

	// Next free slot in tree.Nodes.
	nextNode int32

	// FIFO of pending build steps.
	queue []buildStep

	// Scratch buffers reused by all partition steps.
	buckets    []bucket
	rightBBox  [][2]types.Vec3
	rightCount []int

	stats stats
}

// Flatten scene geometry and build an AABB tree over the world-space triangles.
func Build(sc *scene.Scene, opts Options) (*Tree, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	triangles, leafs, err := Flatten(sc)
	if err != nil {
		return nil, err
	}

	return BuildTree(triangles, leafs, opts), nil
}

// Build an AABB tree for the given leafs using binned SAH partitioning. The
// leaf slice is copied so the caller's ordering is left untouched. Invalid
// options are replaced by the defaults.
func BuildTree(triangles []Triangle, leafs []Leaf, opts Options) *Tree {
	if opts.Validate() != nil {
		opts = DefaultOptions()
	}

	tree := &Tree{
		Nodes:     make([]AabbNode, 0),
		Triangles: triangles,
	}
	if len(leafs) == 0 {
		return tree
	}
	if len(leafs) > 1 {
		tree.Nodes = make([]AabbNode, len(leafs)-1)
	}

	b := &builder{
		logger:     log.New("bvh builder"),
		opts:       opts,
		leafs:      append([]Leaf(nil), leafs...),
		tree:       tree,
		queue:      make([]buildStep, 0, 64),
		buckets:    make([]bucket, opts.Buckets),
		rightBBox:  make([][2]types.Vec3, opts.Buckets-1),
		rightCount: make([]int, opts.Buckets-1),
	}

	start := time.Now()
	b.queue = append(b.queue, buildStep{
		slot: slotRef{node: rootNode},
		beg:  0,
		end:  len(b.leafs),
	})
	for len(b.queue) > 0 {
		step := b.queue[0]
		b.queue = b.queue[1:]
		b.process(step)
	}

	b.logger.Debugf(
		"BVH tree build time: %d ms, triangles: %d, nodes: %d, maxDepth: %d, SAH splits: %d, fallback splits: %d",
		time.Since(start).Nanoseconds()/1e6,
		len(b.leafs), b.nextNode, b.stats.maxDepth, b.stats.sahSplits, b.stats.fallbackSplits,
	)
	return tree
}

// Process a single build step.
func (b *builder) process(step buildStep) {
	if step.depth > b.stats.maxDepth {
		b.stats.maxDepth = step.depth
	}

	switch step.end - step.beg {
	case 1:
		b.resolve(step.slot, EncodeLeaf(b.leafs[step.beg].GeomIndex))
	case 2:
		// Not worth scoring splits for a binary choice
		left, right := &b.leafs[step.beg], &b.leafs[step.beg+1]
		node := &b.tree.Nodes[b.allocNode(step.slot)]
		node.SetLeftBBox(left.BBox())
		node.SetRightBBox(right.BBox())
		node.LeftChild = EncodeLeaf(left.GeomIndex)
		node.RightChild = EncodeLeaf(right.GeomIndex)
	default:
		pivot, leftBBox, rightBBox := b.partition(step.beg, step.end)

		nodeIndex := b.allocNode(step.slot)
		node := &b.tree.Nodes[nodeIndex]
		node.SetLeftBBox(leftBBox)
		node.SetRightBBox(rightBBox)

		b.queue = append(b.queue,
			buildStep{slot: slotRef{node: nodeIndex, side: leftSide}, beg: step.beg, end: pivot, depth: step.depth + 1},
			buildStep{slot: slotRef{node: nodeIndex, side: rightSide}, beg: pivot, end: step.end, depth: step.depth + 1},
		)
	}
}

// Allocate the next node and link it to slot.
func (b *builder) allocNode(slot slotRef) int32 {
	nodeIndex := b.nextNode
	b.nextNode++
	b.resolve(slot, nodeIndex)
	return nodeIndex
}

// Store a child reference into slot.
func (b *builder) resolve(slot slotRef, ref int32) {
	switch {
	case slot.node == rootNode:
		b.tree.Root = ref
	case slot.side == leftSide:
		b.tree.Nodes[slot.node].LeftChild = ref
	default:
		b.tree.Nodes[slot.node].RightChild = ref
	}
}

// Partition leafs[beg:end] in place using binned SAH and return the pivot
// index together with the bounding boxes of the two sides. If SAH fails to
// separate the leafs the range is split at its midpoint instead.
func (b *builder) partition(beg, end int) (int, [2]types.Vec3, [2]types.Vec3) {
	centroidBBox := emptyBBox()
	outerBBox := emptyBBox()
	for i := beg; i < end; i++ {
		leaf := &b.leafs[i]
		centroidBBox[0] = types.MinVec3(centroidBBox[0], leaf.Centroid)
		centroidBBox[1] = types.MaxVec3(centroidBBox[1], leaf.Centroid)
		outerBBox = unionBBox(outerBBox, leaf.BBox())
	}

	// A zero denominator can only occur for fully degenerate ranges; the
	// same goes for a collapsed centroid span on the split axis.
	outerHeuristic := halfArea(outerBBox)
	span := centroidBBox[1].Sub(centroidBBox[0])
	axis := splitAxis(span)
	bucketWidth := span[axis] / float32(b.opts.Buckets)
	if !(outerHeuristic > 0) || math.IsInf(float64(outerHeuristic), 0) || !(bucketWidth > 0) {
		return b.midpointSplit(beg, end)
	}

	for i := range b.buckets {
		b.buckets[i] = bucket{bbox: emptyBBox()}
	}
	lastBucket := b.opts.Buckets - 1
	for i := beg; i < end; i++ {
		leaf := &b.leafs[i]
		index := int((leaf.Centroid[axis] - centroidBBox[0][axis]) / bucketWidth)
		if index < 0 {
			index = 0
		} else if index > lastBucket {
			index = lastBucket
		}

		leaf.bucket = index
		b.buckets[index].count++
		b.buckets[index].bbox = unionBBox(b.buckets[index].bbox, leaf.BBox())
	}

	// Sweep from the right to collect the bounds of buckets (s, B-1]
	accBBox := emptyBBox()
	accCount := 0
	for s := lastBucket - 1; s >= 0; s-- {
		accBBox = unionBBox(accBBox, b.buckets[s+1].bbox)
		accCount += b.buckets[s+1].count
		b.rightBBox[s] = accBBox
		b.rightCount[s] = accCount
	}

	bestSplit := -1
	bestCost := float32(math.Inf(1))
	var bestLeft, bestRight [2]types.Vec3
	accBBox = emptyBBox()
	accCount = 0
	for s := 0; s < lastBucket; s++ {
		accBBox = unionBBox(accBBox, b.buckets[s].bbox)
		accCount += b.buckets[s].count

		// Splits with an empty side never separate the leafs
		if accCount == 0 || b.rightCount[s] == 0 {
			continue
		}

		cost := b.opts.TraversalCost +
			(float32(accCount)*halfArea(accBBox)+float32(b.rightCount[s])*halfArea(b.rightBBox[s]))/outerHeuristic
		if cost < bestCost {
			bestCost = cost
			bestSplit = s
			bestLeft = accBBox
			bestRight = b.rightBBox[s]
		}
	}

	if bestSplit == -1 {
		return b.midpointSplit(beg, end)
	}

	pivot := beg
	for i := beg; i < end; i++ {
		if b.leafs[i].bucket <= bestSplit {
			b.leafs[i], b.leafs[pivot] = b.leafs[pivot], b.leafs[i]
			pivot++
		}
	}

	if pivot == beg || pivot == end {
		return b.midpointSplit(beg, end)
	}

	b.stats.sahSplits++
	return pivot, bestLeft, bestRight
}

// Split leafs[beg:end] at the midpoint of the range and rescan both halves
// to compute their bounds.
func (b *builder) midpointSplit(beg, end int) (int, [2]types.Vec3, [2]types.Vec3) {
	b.stats.fallbackSplits++

	mid := (beg + end) / 2
	leftBBox, rightBBox := emptyBBox(), emptyBBox()
	for i := beg; i < mid; i++ {
		leftBBox = unionBBox(leftBBox, b.leafs[i].BBox())
	}
	for i := mid; i < end; i++ {
		rightBBox = unionBBox(rightBBox, b.leafs[i].BBox())
	}

	b.logger.Debugf("midpoint split for leaf range [%d, %d)", beg, end)
	return mid, leftBBox, rightBBox
}

// Select the axis with the widest centroid span. Ties resolve to x, then y,
// then z.
func splitAxis(span types.Vec3) Axis {
	axis := XAxis
	if span[YAxis] > span[axis] {
		axis = YAxis
	}
	if span[ZAxis] > span[axis] {
		axis = ZAxis
	}
	return axis
}
