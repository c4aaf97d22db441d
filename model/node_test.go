package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentType(t *testing.T) {
	assert.True(t, PowerGeneration.IsSource())
	assert.False(t, Building.IsSource())
	assert.True(t, DistributionSubstation.Valid())
	assert.False(t, ComponentType("Windmill").Valid())
}
