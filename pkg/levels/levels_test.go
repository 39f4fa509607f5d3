package levels

import (
	"testing"

	"github.com/kmathys/skirmish/pkg/spawn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name: "valid arena",
			data: `
name: quarry
width: 32
height: 32
spawns:
  - name: a
    x: 4
    y: 4
    team: alpha
  - name: b
    x: 28
    y: 28
    yaw: 180
    team: bravo
`,
		},
		{
			name: "no spawn points",
			data: `
name: empty
width: 32
height: 32
`,
			wantErr: "no spawn points",
		},
		{
			name: "duplicate spawn name",
			data: `
name: dupes
width: 32
height: 32
spawns:
  - name: a
    x: 4
    y: 4
  - name: a
    x: 8
    y: 8
`,
			wantErr: "duplicate spawn point name",
		},
		{
			name: "unknown team",
			data: `
name: badteam
width: 32
height: 32
spawns:
  - name: a
    x: 4
    y: 4
    team: chartreuse
`,
			wantErr: "unknown team",
		},
		{
			name: "spawn outside arena",
			data: `
name: oob
width: 32
height: 32
spawns:
  - name: a
    x: 40
    y: 4
`,
			wantErr: "outside the arena",
		},
		{
			name: "non-positive dimensions",
			data: `
name: flat
width: 0
height: 32
spawns:
  - name: a
    x: 0
    y: 4
`,
			wantErr: "dimensions must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arena, err := Parse([]byte(tt.data))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, arena)
		})
	}
}

func TestArena_SpawnLocations(t *testing.T) {
	arena, err := Parse([]byte(`
name: quarry
width: 32
height: 32
spawns:
  - name: a
    x: 4
    y: 6
    yaw: 90
    team: alpha
  - name: mid
    x: 16
    y: 16
`))
	require.NoError(t, err)

	locations := arena.SpawnLocations()
	require.Len(t, locations, 2)

	assert.Equal(t, "a", locations[0].Name)
	assert.Equal(t, spawn.TeamAlpha, locations[0].Team)
	assert.Equal(t, 4.0, locations[0].Position.X)
	assert.Equal(t, 90.0, locations[0].Yaw)

	assert.Equal(t, spawn.TeamNone, locations[1].Team, "omitted team defaults to free-for-all")
}

func TestDefault(t *testing.T) {
	arena := Default()
	require.NoError(t, arena.validate())

	teams := make(map[spawn.Team]int)
	for _, location := range arena.SpawnLocations() {
		teams[location.Team]++
	}
	assert.NotZero(t, teams[spawn.TeamNone])
	assert.NotZero(t, teams[spawn.TeamAlpha])
	assert.NotZero(t, teams[spawn.TeamBravo])
}
