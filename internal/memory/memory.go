// Package memory keeps per-tag accounting of engine allocations. Sizes live in
// a side table keyed by the allocation's owner, so nothing is stored in front
// of the allocated block.
package memory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logging"
)

type Tag int

const (
	TagUnknown Tag = iota
	TagArray
	TagDArray
	TagDict
	TagRingQueue
	TagBST
	TagString
	TagApplication
	TagJob
	TagTexture
	TagMaterialInstance
	TagRenderer
	TagGame
	TagTransform
	TagEntity
	TagEntityNode
	TagScene

	tagCount
)

var tagNames = [tagCount]string{
	"UNKNOWN", "ARRAY", "DARRAY", "DICT", "RING_QUEUE",
	"BST", "STRING", "APPLICATION", "JOB", "TEXTURE",
	"MAT_INST", "RENDERER", "GAME", "TRANSFORM", "ENTITY",
	"ENTITY_NODE", "SCENE",
}

func (t Tag) String() string {
	if t < 0 || t >= tagCount {
		return fmt.Sprintf("Tag(%d)", int(t))
	}
	return tagNames[t]
}

type allocation struct {
	size uint64
	tag  Tag
}

// Tracker accounts allocations owned by keys of type K. It is not safe for
// concurrent use.
type Tracker[K comparable] struct {
	logger *slog.Logger

	total  uint64
	tagged [tagCount]uint64
	live   map[K]allocation
}

func NewTracker[K comparable](logger *slog.Logger) *Tracker[K] {
	return &Tracker[K]{
		logger: logging.OrNop(logger),
		live:   make(map[K]allocation),
	}
}

// Allocate records size bytes owned by key under tag.
func (t *Tracker[K]) Allocate(key K, size uint64, tag Tag) error {
	if tag < 0 || tag >= tagCount {
		return errors.Newf("memory: invalid tag %d", int(tag))
	}
	if _, exists := t.live[key]; exists {
		return errors.Newf("memory: key %v already has a live allocation", key)
	}
	if tag == TagUnknown {
		t.logger.Warn("Allocate called using TagUnknown. Re-class this allocation.")
	}

	t.live[key] = allocation{size: size, tag: tag}
	t.total += size
	t.tagged[tag] += size
	return nil
}

// Free releases the allocation owned by key and returns its size.
func (t *Tracker[K]) Free(key K) (uint64, error) {
	a, ok := t.live[key]
	if !ok {
		return 0, errors.Newf("memory: no live allocation for key %v", key)
	}
	if a.tag == TagUnknown {
		t.logger.Warn("Free called using TagUnknown. Re-class this allocation.")
	}

	delete(t.live, key)
	t.total -= a.size
	t.tagged[a.tag] -= a.size
	return a.size, nil
}

func (t *Tracker[K]) Total() uint64 {
	return t.total
}

func (t *Tracker[K]) Tagged(tag Tag) uint64 {
	if tag < 0 || tag >= tagCount {
		return 0
	}
	return t.tagged[tag]
}

func (t *Tracker[K]) Live() int {
	return len(t.live)
}

// Report renders per-tag usage, one tag per line.
func (t *Tracker[K]) Report() string {
	var b strings.Builder
	b.WriteString("System memory use (tagged):\n")
	for tag := Tag(0); tag < tagCount; tag++ {
		fmt.Fprintf(&b, "  %-11s: %s\n", tag, FormatSize(t.tagged[tag]))
	}
	return b.String()
}

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// FormatSize renders a byte count with a binary unit.
func FormatSize(size uint64) string {
	switch {
	case size >= gib:
		return fmt.Sprintf("%.2fGiB", float64(size)/gib)
	case size >= mib:
		return fmt.Sprintf("%.2fMiB", float64(size)/mib)
	case size >= kib:
		return fmt.Sprintf("%.2fKiB", float64(size)/kib)
	default:
		return fmt.Sprintf("%.2fB", float64(size))
	}
}
