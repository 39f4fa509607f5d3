package spawn

import (
	"fmt"

	"github.com/kmathys/skirmish/pkg/geom"
)

// Team identifies the team affiliation of a spawn location or player.
type Team int

const (
	// TeamNone marks free-for-all locations with no team affiliation
	TeamNone Team = iota
	TeamAlpha
	TeamBravo
)

func (t Team) String() string {
	switch t {
	case TeamNone:
		return "none"
	case TeamAlpha:
		return "alpha"
	case TeamBravo:
		return "bravo"
	default:
		return "unknown"
	}
}

// ParseTeam parses a team name. Valid teams are: none, alpha, bravo.
func ParseTeam(name string) (Team, error) {
	switch name {
	case "", "none":
		return TeamNone, nil
	case "alpha":
		return TeamAlpha, nil
	case "bravo":
		return TeamBravo, nil
	default:
		return TeamNone, fmt.Errorf("unknown team: %s", name)
	}
}

// Location is a fixed spawn point in the arena. Locations are immutable
// for the duration of a match; callers always receive copies.
type Location struct {
	Name     string
	Position geom.Vector
	Yaw      float64
	Team     Team
}
