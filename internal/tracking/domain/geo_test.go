package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	// Один градус широты на экваторе ~ 111.19 км
	d := DistanceMeters(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 10)

	// Симметрия
	assert.InDelta(t, DistanceMeters(35.5384, 129.3114, 35.5400, 129.3100), DistanceMeters(35.5400, 129.3100, 35.5384, 129.3114), 0.001)

	// Нулевое расстояние
	assert.Equal(t, 0.0, DistanceMeters(35.5384, 129.3114, 35.5384, 129.3114))

	// ~100 м к северу: 100 / 111320 градуса широты
	d = DistanceMeters(35.5384, 129.3114, 35.5384+100.0/111320.0, 129.3114)
	assert.InDelta(t, 100, d, 1)

	// Порядок радиусов геозон: 25 м не выглядит как 250 м
	d = DistanceMeters(35.5384, 129.3114, 35.5384+25.0/111320.0, 129.3114)
	assert.Greater(t, d, 20.0)
	assert.Less(t, d, 30.0)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(35.5384, 129.3114))
	assert.True(t, ValidCoordinates(-90, -180))
	assert.True(t, ValidCoordinates(90, 180))
	assert.True(t, ValidCoordinates(0, 0))

	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(-90.1, 0))
	assert.False(t, ValidCoordinates(0, 180.1))
	assert.False(t, ValidCoordinates(0, -180.1))
}
