package versioning_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwork-labs/intake/pkg/versioning"
)

func TestParse(t *testing.T) {
	v, err := versioning.Parse(versioning.SchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Major())

	_, err = versioning.Parse("not-a-version")
	assert.Error(t, err)
}

func TestCompatible(t *testing.T) {
	assert.True(t, versioning.Compatible("1.0.0"))
	assert.True(t, versioning.Compatible("1.9.3"))
	assert.False(t, versioning.Compatible("2.0.0"))
	assert.False(t, versioning.Compatible("0.9.0"))
	assert.False(t, versioning.Compatible(""))
	assert.False(t, versioning.Compatible("banana"))
}
