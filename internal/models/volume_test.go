package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolumeSpecMatches(t *testing.T) {
	tests := []struct {
		name   string
		spec   VolumeSpec
		volume ObservedVolume
		want   bool
	}{
		{"name match", VolumeSpec{Name: "v1"}, ObservedVolume{ID: "a1", Name: "v1"}, true},
		{"id match", VolumeSpec{ID: "a1"}, ObservedVolume{ID: "a1", Name: "other"}, true},
		{"no match", VolumeSpec{Name: "v1"}, ObservedVolume{ID: "a1", Name: "v2"}, false},
		{"unset name does not match unnamed volume", VolumeSpec{ID: "b2"}, ObservedVolume{ID: "a1"}, false},
		{"empty spec matches nothing", VolumeSpec{}, ObservedVolume{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Matches(tt.volume))
		})
	}
}

func TestVolumeSpecHasIdentity(t *testing.T) {
	assert.False(t, VolumeSpec{Size: 10}.HasIdentity())
	assert.True(t, VolumeSpec{Name: "v1"}.HasIdentity())
	assert.True(t, VolumeSpec{ID: "a1"}.HasIdentity())
}
