package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifiedKeyEncoding(t *testing.T) {
	k := NotifiedKey{PartyID: "abc123", GroupName: "Fish Dishes"}
	assert.Equal(t, "abc123::Fish Dishes", k.String())

	back, err := ParseNotifiedKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, back)

	for _, bad := range []string{"", "abc123", "::Fishing", "abc123::"} {
		_, err := ParseNotifiedKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestSparse(t *testing.T) {
	p := PartyRecord{ID: "x", Title: "t", Time: Unspecified, Host: Unspecified, Dish: Dish{Name: NoDish}}
	assert.True(t, p.Sparse())

	p.Host = "Ashura"
	assert.False(t, p.Sparse())
}
