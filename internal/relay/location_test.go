package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationPicker_Seeded(t *testing.T) {
	a, b := NewLocationPicker(42), NewLocationPicker(42)
	for i := 0; i < 20; i++ {
		got := a()
		assert.Equal(t, got, b())
		assert.Contains(t, locations[:], got)
	}
	assert.Len(t, locations, 23)
}

func TestFixedLocation(t *testing.T) {
	assert.Equal(t, "Shire", FixedLocation("Shire")())
}
