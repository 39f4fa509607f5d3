package spawn

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kmathys/skirmish/pkg/geom"
	"github.com/kmathys/skirmish/pkg/log"
)

const (
	// ClearanceRadius is the radius around a candidate location that must
	// be free of players before it is handed out
	ClearanceRadius = 1.5
	// MaxAttempts bounds the candidate search per request
	MaxAttempts = 30
	// ReservationTimeout is how long an unconsumed reservation is held
	// before the sweep reclaims it
	ReservationTimeout = 10 * time.Second
)

// OccupancyChecker answers whether a position has enough clearance to
// place a player. Implementations are read-only and side-effect-free.
type OccupancyChecker interface {
	IsClear(position geom.Vector, radius float64) bool
}

// Clock provides the current time for reservation timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// ErrNoLocations is returned when the requested pool has no configured
// locations. It indicates a setup defect the caller must handle.
type ErrNoLocations struct {
	Team Team
}

func (e *ErrNoLocations) Error() string {
	return fmt.Sprintf("no spawn locations configured for team %s", e.Team)
}

func IsNoLocations(err error) bool {
	_, ok := err.(*ErrNoLocations)
	return ok
}

type reservation struct {
	location Location
	madeAt   time.Time
}

// Allocator owns the spawn location pools and the reservation table.
// All reads and writes of the table happen under a single lock, so the
// table is always consistent with some total order of the calls made.
// Mutating operations are no-ops unless the allocator is authoritative.
type Allocator struct {
	occupancy     OccupancyChecker
	clock         Clock
	authoritative bool

	lock       sync.Mutex
	pools      map[Team][]Location
	byLocation map[string]uint32      // location name -> holding client
	byClient   map[uint32]reservation // client -> held location
}

type NewAllocatorOptions struct {
	Occupancy OccupancyChecker
	// Clock defaults to SystemClock when nil
	Clock Clock
	// Authoritative must be true on the host that owns match state
	Authoritative bool
}

func NewAllocator(opts NewAllocatorOptions) *Allocator {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &Allocator{
		occupancy:     opts.Occupancy,
		clock:         clock,
		authoritative: opts.Authoritative,
		pools:         make(map[Team][]Location),
		byLocation:    make(map[string]uint32),
		byClient:      make(map[uint32]reservation),
	}
}

// Configure partitions locations into team pools and one free-for-all
// pool. It may be called again whenever the arena changes; reservations
// pointing at locations that no longer exist are released.
func (a *Allocator) Configure(locations []Location) {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.pools = make(map[Team][]Location)
	for _, location := range locations {
		a.pools[location.Team] = append(a.pools[location.Team], location)
	}

	known := make(map[string]struct{}, len(locations))
	for _, location := range locations {
		known[location.Name] = struct{}{}
	}
	for clientID, res := range a.byClient {
		if _, ok := known[res.location.Name]; !ok {
			log.Debug("Releasing reservation for client %d: location %s removed", clientID, res.location.Name)
			a.releaseLocked(clientID)
		}
	}
}

// FindSpawn returns a spawn location for the given team without
// reserving it. It is used for initial spawns where no client
// exclusivity is needed. A non-empty pool always yields a location:
// when every probed candidate is occupied the pool head is returned.
func (a *Allocator) FindSpawn(team Team) (Location, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	pool := a.pools[team]
	if len(pool) == 0 {
		return Location{}, &ErrNoLocations{Team: team}
	}

	if candidate, ok := a.findCandidate(pool, false); ok {
		return candidate, nil
	}

	log.Warn("No clear spawn location for team %s, falling back to %s", team, pool[0].Name)
	return pool[0], nil
}

// Reserve finds a spawn location for clientID and records an exclusive
// claim on it so concurrent respawn requests cannot pick the same point.
// Any reservation clientID already holds is released first. When every
// probed candidate is occupied or reserved the pool head is reserved
// regardless of its state; spawning somewhere beats stalling the match.
func (a *Allocator) Reserve(clientID uint32, team Team) (Location, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	pool := a.pools[team]
	if len(pool) == 0 {
		return Location{}, &ErrNoLocations{Team: team}
	}

	if !a.authoritative {
		log.Warn("Reserve called on non-authoritative allocator for client %d", clientID)
		if candidate, ok := a.findCandidate(pool, false); ok {
			return candidate, nil
		}
		return pool[0], nil
	}

	// The search runs with any prior reservation still in the table so a
	// re-reserving client never lands on the point it already holds.
	location, ok := a.findCandidate(pool, true)
	if !ok {
		location = pool[0]
		log.Warn("No free spawn location for client %d on team %s, double-booking %s", clientID, team, location.Name)
	}

	a.releaseLocked(clientID)
	a.byLocation[location.Name] = clientID
	a.byClient[clientID] = reservation{
		location: location,
		madeAt:   a.clock.Now(),
	}

	return location, nil
}

// GetReservation returns the location currently reserved by clientID.
func (a *Allocator) GetReservation(clientID uint32) (Location, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	res, ok := a.byClient[clientID]
	if !ok {
		return Location{}, false
	}
	return res.location, true
}

// Release removes clientID's reservation if one exists. It must be
// called once the player physically occupies the spawn, or on
// disconnect; calling it with no live reservation is a no-op.
func (a *Allocator) Release(clientID uint32) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if !a.authoritative {
		return
	}

	a.releaseLocked(clientID)
}

// OnClientDisconnect releases any reservation held by clientID. It is
// registered with the connection event path on the authoritative host.
func (a *Allocator) OnClientDisconnect(clientID uint32) {
	a.Release(clientID)
}

// SweepExpired releases reservations older than ReservationTimeout.
// The match loop invokes it once per tick.
func (a *Allocator) SweepExpired(now time.Time) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if !a.authoritative {
		return
	}

	for clientID, res := range a.byClient {
		if now.Sub(res.madeAt) > ReservationTimeout {
			log.Debug("Releasing expired reservation for client %d at %s", clientID, res.location.Name)
			a.releaseLocked(clientID)
		}
	}
}

// ReservationCount returns the number of live reservations.
func (a *Allocator) ReservationCount() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.byClient)
}

// findCandidate runs the bounded randomized-start linear probe over the
// pool. Starting the scan at a uniformly random index keeps repeated
// spawns from clustering on the same ordered subset of points. The
// caller must hold the lock.
func (a *Allocator) findCandidate(pool []Location, checkReserved bool) (Location, bool) {
	attempts := len(pool)
	if attempts > MaxAttempts {
		attempts = MaxAttempts
	}

	start := rand.Intn(len(pool))
	for i := 0; i < attempts; i++ {
		candidate := pool[(start+i)%len(pool)]
		if checkReserved {
			if _, taken := a.byLocation[candidate.Name]; taken {
				continue
			}
		}
		if !a.occupancy.IsClear(candidate.Position, ClearanceRadius) {
			continue
		}
		return candidate, true
	}

	return Location{}, false
}

// releaseLocked removes clientID's reservation. The location mapping is
// only cleared when it still points at clientID: a fallback reservation
// may have overwritten it with another holder in the meantime. The
// caller must hold the lock.
func (a *Allocator) releaseLocked(clientID uint32) {
	res, ok := a.byClient[clientID]
	if !ok {
		return
	}

	if holder, ok := a.byLocation[res.location.Name]; ok && holder == clientID {
		delete(a.byLocation, res.location.Name)
	}
	delete(a.byClient, clientID)
}
