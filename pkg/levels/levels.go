package levels

import (
	"fmt"
	"os"

	"github.com/kmathys/skirmish/pkg/geom"
	"github.com/kmathys/skirmish/pkg/spawn"
	"gopkg.in/yaml.v3"
)

// Arena describes a playable level: its bounds, static walls, and spawn
// points. Arenas are loaded once at startup and treated as immutable.
type Arena struct {
	Name   string       `yaml:"name"`
	Width  int          `yaml:"width"`
	Height int          `yaml:"height"`
	Walls  []WallDef    `yaml:"walls"`
	Spawns []SpawnPoint `yaml:"spawns"`
}

type WallDef struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type SpawnPoint struct {
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Yaw  float64 `yaml:"yaw"`
	Team string  `yaml:"team"`
}

// Load reads and parses an arena definition file.
func Load(path string) (*Arena, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read arena file: %v", err)
	}
	return Parse(data)
}

// Parse parses an arena definition from YAML.
func Parse(data []byte) (*Arena, error) {
	arena := &Arena{}
	if err := yaml.Unmarshal(data, arena); err != nil {
		return nil, fmt.Errorf("failed to parse arena file: %v", err)
	}
	if err := arena.validate(); err != nil {
		return nil, fmt.Errorf("invalid arena %q: %v", arena.Name, err)
	}
	return arena, nil
}

func (a *Arena) validate() error {
	if a.Width <= 0 || a.Height <= 0 {
		return fmt.Errorf("arena dimensions must be positive, got %dx%d", a.Width, a.Height)
	}
	if len(a.Spawns) == 0 {
		return fmt.Errorf("arena has no spawn points")
	}

	names := make(map[string]bool, len(a.Spawns))
	for _, point := range a.Spawns {
		if point.Name == "" {
			return fmt.Errorf("spawn point without a name")
		}
		if names[point.Name] {
			return fmt.Errorf("duplicate spawn point name %q", point.Name)
		}
		names[point.Name] = true

		if _, err := spawn.ParseTeam(point.Team); err != nil {
			return fmt.Errorf("spawn point %q: %v", point.Name, err)
		}
		if point.X < 0 || point.X > float64(a.Width) || point.Y < 0 || point.Y > float64(a.Height) {
			return fmt.Errorf("spawn point %q is outside the arena", point.Name)
		}
	}
	return nil
}

// SpawnLocations converts the arena's spawn points into allocator
// locations. Validation has already checked the team names.
func (a *Arena) SpawnLocations() []spawn.Location {
	locations := make([]spawn.Location, 0, len(a.Spawns))
	for _, point := range a.Spawns {
		team, _ := spawn.ParseTeam(point.Team)
		locations = append(locations, spawn.Location{
			Name:     point.Name,
			Position: geom.Vector{X: point.X, Y: point.Y},
			Yaw:      point.Yaw,
			Team:     team,
		})
	}
	return locations
}

// Default returns a built-in arena so the server can run without an
// arena file on disk.
func Default() *Arena {
	return &Arena{
		Name:   "forge",
		Width:  64,
		Height: 48,
		Walls: []WallDef{
			{X: 0, Y: 0, Width: 64, Height: 1},
			{X: 0, Y: 47, Width: 64, Height: 1},
			{X: 0, Y: 1, Width: 1, Height: 46},
			{X: 63, Y: 1, Width: 1, Height: 46},
			{X: 30, Y: 22, Width: 4, Height: 4},
		},
		Spawns: []SpawnPoint{
			{Name: "north", X: 32, Y: 6, Yaw: 180, Team: "none"},
			{Name: "south", X: 32, Y: 42, Yaw: 0, Team: "none"},
			{Name: "east", X: 58, Y: 24, Yaw: 270, Team: "none"},
			{Name: "west", X: 6, Y: 24, Yaw: 90, Team: "none"},
			{Name: "alpha-base-0", X: 6, Y: 6, Yaw: 135, Team: "alpha"},
			{Name: "alpha-base-1", X: 12, Y: 6, Yaw: 135, Team: "alpha"},
			{Name: "bravo-base-0", X: 58, Y: 42, Yaw: 315, Team: "bravo"},
			{Name: "bravo-base-1", X: 52, Y: 42, Yaw: 315, Team: "bravo"},
		},
	}
}
