package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImpactLevel_MoreSevere(t *testing.T) {
	assert.True(t, ImpactLevelCritical.MoreSevere(ImpactLevelHigh))
	assert.True(t, ImpactLevelHigh.MoreSevere(ImpactLevelLow))
	assert.False(t, ImpactLevelMedium.MoreSevere(ImpactLevelMedium))
	assert.False(t, ImpactLevelLow.MoreSevere(ImpactLevelCritical))
}

func TestImpactLevel_Cap(t *testing.T) {
	assert.Equal(t, ImpactLevelMedium, ImpactLevelCritical.Cap(ImpactLevelMedium))
	assert.Equal(t, ImpactLevelLow, ImpactLevelLow.Cap(ImpactLevelMedium))
	assert.Equal(t, ImpactLevelHigh, ImpactLevelHigh.Cap(ImpactLevelHigh))
}

func TestIsValidChangeType(t *testing.T) {
	assert.True(t, IsValidChangeType(ChangeTypeModify))
	assert.True(t, IsValidChangeType(ChangeTypeDelete))
	assert.False(t, IsValidChangeType(ChangeType("DROP")))
}
