package spawn

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kmathys/skirmish/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOccupancy reports positions as blocked when they appear in the set.
type fakeOccupancy struct {
	blocked map[geom.Vector]bool
}

func newFakeOccupancy() *fakeOccupancy {
	return &fakeOccupancy{blocked: make(map[geom.Vector]bool)}
}

func (f *fakeOccupancy) IsClear(position geom.Vector, radius float64) bool {
	return !f.blocked[position]
}

func (f *fakeOccupancy) Block(position geom.Vector) {
	f.blocked[position] = true
}

// fakeClock returns a fixed time that tests can advance.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func ffaLocations(n int) []Location {
	locations := make([]Location, 0, n)
	for i := 0; i < n; i++ {
		locations = append(locations, Location{
			Name:     fmt.Sprintf("ffa-%d", i),
			Position: geom.Vector{X: float64(i) * 10},
			Team:     TeamNone,
		})
	}
	return locations
}

func newTestAllocator(t *testing.T, occupancy OccupancyChecker, clock Clock, locations []Location) *Allocator {
	t.Helper()
	allocator := NewAllocator(NewAllocatorOptions{
		Occupancy:     occupancy,
		Clock:         clock,
		Authoritative: true,
	})
	allocator.Configure(locations)
	return allocator
}

func TestAllocator_ReserveUniqueLocations(t *testing.T) {
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, ffaLocations(8))

	seen := make(map[string]uint32)
	for clientID := uint32(1); clientID <= 8; clientID++ {
		location, err := allocator.Reserve(clientID, TeamNone)
		require.NoError(t, err)
		if holder, taken := seen[location.Name]; taken {
			t.Fatalf("location %s reserved by both client %d and client %d", location.Name, holder, clientID)
		}
		seen[location.Name] = clientID
	}

	assert.Equal(t, 8, allocator.ReservationCount())
}

func TestAllocator_ReserveSupersedesPrevious(t *testing.T) {
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, ffaLocations(3))

	first, err := allocator.Reserve(7, TeamNone)
	require.NoError(t, err)

	second, err := allocator.Reserve(7, TeamNone)
	require.NoError(t, err)
	assert.NotEqual(t, first.Name, second.Name, "second reservation should pick from the remaining locations")

	held, ok := allocator.GetReservation(7)
	require.True(t, ok)
	assert.Equal(t, second.Name, held.Name)
	assert.Equal(t, 1, allocator.ReservationCount())

	// the first location is free again for another client
	for i := 0; i < 30; i++ {
		location, err := allocator.Reserve(10, TeamNone)
		require.NoError(t, err)
		if location.Name == first.Name {
			return
		}
		allocator.Release(10)
	}
	t.Fatalf("superseded location %s was never handed out again", first.Name)
}

func TestAllocator_ReleaseIdempotent(t *testing.T) {
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, ffaLocations(3))

	allocator.Release(42)
	assert.Equal(t, 0, allocator.ReservationCount())

	_, err := allocator.Reserve(7, TeamNone)
	require.NoError(t, err)
	allocator.Release(7)
	allocator.Release(7)
	assert.Equal(t, 0, allocator.ReservationCount())
}

func TestAllocator_SweepExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	allocator := newTestAllocator(t, newFakeOccupancy(), clock, ffaLocations(3))

	_, err := allocator.Reserve(7, TeamNone)
	require.NoError(t, err)

	// exactly at the timeout the reservation is still live
	allocator.SweepExpired(clock.now.Add(ReservationTimeout))
	_, ok := allocator.GetReservation(7)
	assert.True(t, ok, "reservation swept before it expired")

	allocator.SweepExpired(clock.now.Add(ReservationTimeout + time.Millisecond))
	_, ok = allocator.GetReservation(7)
	assert.False(t, ok, "expired reservation was not swept")
}

func TestAllocator_FallbackWhenAllOccupied(t *testing.T) {
	occupancy := newFakeOccupancy()
	locations := ffaLocations(3)
	for _, location := range locations {
		occupancy.Block(location.Position)
	}
	allocator := newTestAllocator(t, occupancy, &fakeClock{}, locations)

	found, err := allocator.FindSpawn(TeamNone)
	require.NoError(t, err)
	assert.Equal(t, locations[0].Name, found.Name, "fallback should be the pool head")

	reserved, err := allocator.Reserve(7, TeamNone)
	require.NoError(t, err)
	assert.Equal(t, locations[0].Name, reserved.Name)
}

func TestAllocator_EmptyPool(t *testing.T) {
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, ffaLocations(3))

	_, err := allocator.FindSpawn(TeamAlpha)
	require.Error(t, err)
	assert.True(t, IsNoLocations(err))

	_, err = allocator.Reserve(7, TeamBravo)
	require.Error(t, err)
	assert.True(t, IsNoLocations(err))
}

func TestAllocator_OccupancyRespected(t *testing.T) {
	occupancy := newFakeOccupancy()
	locations := ffaLocations(3)
	occupancy.Block(locations[0].Position)

	allocator := newTestAllocator(t, occupancy, &fakeClock{}, locations)

	// the bounded probe visits the whole pool, so the occupied location
	// is never returned regardless of the random start index
	for i := 0; i < 50; i++ {
		found, err := allocator.FindSpawn(TeamNone)
		require.NoError(t, err)
		assert.NotEqual(t, locations[0].Name, found.Name)
	}
}

func TestAllocator_OnlyClearLocationAlwaysFound(t *testing.T) {
	occupancy := newFakeOccupancy()
	locations := ffaLocations(5)
	for _, location := range locations[:4] {
		occupancy.Block(location.Position)
	}
	allocator := newTestAllocator(t, occupancy, &fakeClock{}, locations)

	for i := 0; i < 50; i++ {
		found, err := allocator.FindSpawn(TeamNone)
		require.NoError(t, err)
		assert.Equal(t, locations[4].Name, found.Name)
	}
}

func TestAllocator_DoubleBookFallback(t *testing.T) {
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, ffaLocations(1))

	first, err := allocator.Reserve(5, TeamNone)
	require.NoError(t, err)

	second, err := allocator.Reserve(9, TeamNone)
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name, "single-location pool must fall back to the same point")

	// both clients hold a record until one releases
	held5, ok := allocator.GetReservation(5)
	require.True(t, ok)
	held9, ok := allocator.GetReservation(9)
	require.True(t, ok)
	assert.Equal(t, held5.Name, held9.Name)

	allocator.Release(5)
	_, ok = allocator.GetReservation(5)
	assert.False(t, ok)
	_, ok = allocator.GetReservation(9)
	assert.True(t, ok, "releasing the superseded holder must not drop the live reservation")
}

func TestAllocator_NonAuthoritativeNoOps(t *testing.T) {
	allocator := NewAllocator(NewAllocatorOptions{
		Occupancy:     newFakeOccupancy(),
		Clock:         &fakeClock{},
		Authoritative: false,
	})
	allocator.Configure(ffaLocations(3))

	location, err := allocator.Reserve(7, TeamNone)
	require.NoError(t, err)
	assert.NotEmpty(t, location.Name, "non-authoritative reserve still answers with a location")
	assert.Equal(t, 0, allocator.ReservationCount(), "non-authoritative reserve must not mutate the table")

	allocator.Release(7)
	allocator.SweepExpired(time.Now())
	assert.Equal(t, 0, allocator.ReservationCount())
}

func TestAllocator_ConfigurePurgesRemovedLocations(t *testing.T) {
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, ffaLocations(3))

	held, err := allocator.Reserve(7, TeamNone)
	require.NoError(t, err)

	remaining := make([]Location, 0, 2)
	for _, location := range ffaLocations(3) {
		if location.Name != held.Name {
			remaining = append(remaining, location)
		}
	}
	allocator.Configure(remaining)

	_, ok := allocator.GetReservation(7)
	assert.False(t, ok, "reservation for a removed location must be purged on reconfigure")
}

func TestAllocator_TeamPools(t *testing.T) {
	locations := []Location{
		{Name: "alpha-0", Position: geom.Vector{X: 0}, Team: TeamAlpha},
		{Name: "alpha-1", Position: geom.Vector{X: 10}, Team: TeamAlpha},
		{Name: "bravo-0", Position: geom.Vector{X: 100}, Team: TeamBravo},
		{Name: "ffa-0", Position: geom.Vector{X: 200}, Team: TeamNone},
	}
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, locations)

	tests := []struct {
		name string
		team Team
		want []string
	}{
		{name: "alpha pool", team: TeamAlpha, want: []string{"alpha-0", "alpha-1"}},
		{name: "bravo pool", team: TeamBravo, want: []string{"bravo-0"}},
		{name: "ffa pool", team: TeamNone, want: []string{"ffa-0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := allocator.FindSpawn(tt.team)
			require.NoError(t, err)
			assert.Contains(t, tt.want, found.Name)
		})
	}
}

func TestAllocator_ConcurrentReserves(t *testing.T) {
	const clients = 16
	allocator := newTestAllocator(t, newFakeOccupancy(), &fakeClock{}, ffaLocations(clients))

	var wg sync.WaitGroup
	results := make([]Location, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			location, err := allocator.Reserve(uint32(i+1), TeamNone)
			assert.NoError(t, err)
			results[i] = location
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, location := range results {
		assert.False(t, seen[location.Name], "location %s double-booked under concurrency", location.Name)
		seen[location.Name] = true
	}
}
