package occupancy

import (
	"github.com/kmathys/skirmish/pkg/geom"
	"github.com/solarlune/resolv"
)

const (
	// TagPlayer marks objects that block spawn clearance and take hits
	TagPlayer = "player"
	// TagWall marks static arena geometry
	TagWall = "wall"
)

// Space wraps a resolv.Space and answers occupancy queries against
// player-tagged geometry. It is not safe for concurrent use; all access
// happens on the match loop goroutine.
type Space struct {
	space *resolv.Space
}

// NewSpace creates a collision space of the given size in arena units.
func NewSpace(width, height, cellSize int) *Space {
	return &Space{
		space: resolv.NewSpace(width, height, cellSize, cellSize),
	}
}

// Add inserts an object into the space.
func (s *Space) Add(obj *resolv.Object) {
	s.space.Add(obj)
}

// Remove removes an object from the space.
func (s *Space) Remove(obj *resolv.Object) {
	s.space.Remove(obj)
}

// IsClear reports whether the square of the given radius around position
// contains no player-tagged objects.
func (s *Space) IsClear(position geom.Vector, radius float64) bool {
	probe := resolv.NewObject(position.X-radius, position.Y-radius, radius*2, radius*2)
	s.space.Add(probe)
	defer s.space.Remove(probe)

	for _, obj := range s.space.Objects() {
		if obj == probe {
			continue
		}
		if !obj.HasTags(TagPlayer) {
			continue
		}
		if probe.SharesCells(obj) {
			return false
		}
	}

	return true
}

// NewPlayerObject creates a player-tagged object centered on position.
func NewPlayerObject(position geom.Vector, size float64) *resolv.Object {
	return resolv.NewObject(position.X-size/2, position.Y-size/2, size, size, TagPlayer)
}

// NewWallObject creates a wall-tagged object with its top-left corner at (x, y).
func NewWallObject(x, y, width, height float64) *resolv.Object {
	return resolv.NewObject(x, y, width, height, TagWall)
}

// MoveObject repositions a player object so it stays centered on position.
func MoveObject(obj *resolv.Object, position geom.Vector) {
	obj.Position.X = position.X - obj.Size.X/2
	obj.Position.Y = position.Y - obj.Size.Y/2
	obj.Update()
}
