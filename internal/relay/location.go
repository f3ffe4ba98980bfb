package relay

import (
	"math/rand"
	"sync"
	"time"
)

var locations = [...]string{
	"United States", "Canada", "United Kingdom", "Germany", "France",
	"Australia", "Japan", "South Korea", "Brazil", "India", "Mexico",
	"Netherlands", "Sweden", "Norway", "Denmark", "Finland", "Italy",
	"Spain", "Portugal", "Poland", "Czech Republic", "Austria", "Switzerland",
}

// LocationPicker returns the cosmetic location shown next to a participant.
type LocationPicker func() string

// NewLocationPicker returns a picker drawing uniformly from the country list.
// A zero seed seeds from the clock.
func NewLocationPicker(seed int64) LocationPicker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var (
		mu  sync.Mutex
		rnd = rand.New(rand.NewSource(seed))
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return locations[rnd.Intn(len(locations))]
	}
}

// FixedLocation returns a picker that always answers loc.
func FixedLocation(loc string) LocationPicker {
	return func() string { return loc }
}
