// Package versioning pins the schema version stamped into every stored
// record and decides whether a previously stored tag is still readable by
// this build.
package versioning

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion is the tag written into canonical records and sheet rows.
// Bump the major only for column-schema or record-shape breaks.
const SchemaVersion = "1.0.0"

// Parse parses a schema version tag.
func Parse(tag string) (*semver.Version, error) {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return nil, fmt.Errorf("versioning: invalid schema tag %q: %w", tag, err)
	}
	return v, nil
}

// Compatible reports whether a stored tag shares this build's major version.
// Malformed tags are incompatible rather than errors so old data never
// blocks a new write.
func Compatible(tag string) bool {
	stored, err := semver.NewVersion(tag)
	if err != nil {
		return false
	}
	current := semver.MustParse(SchemaVersion)
	return stored.Major() == current.Major()
}
