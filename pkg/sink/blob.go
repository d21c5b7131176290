package sink

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldwork-labs/intake/pkg/canonicalize"
	"github.com/fieldwork-labs/intake/pkg/record"
	"github.com/fieldwork-labs/intake/pkg/sanitize"
)

// objectKey builds the blob key for one record:
// participants/{participant_id}_{timestamp}_{suffix}.json. The random suffix
// keeps repeated saves of the same participant from clobbering each other.
func objectKey(rec *record.CanonicalRecord) string {
	pid := "anonymous"
	if rec != nil && rec.ParticipantID != "" {
		pid = rec.ParticipantID
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("participants/%s_%s_%s.json", pid, ts, suffix)
}

// blobBytes renders the record as canonical UTF-8 JSON, non-ASCII preserved.
// A canonical encode failure degrades through the sanitizer, so upload always
// has bytes to write.
func blobBytes(rec *record.CanonicalRecord) []byte {
	b, err := canonicalize.JCS(rec)
	if err != nil {
		b, err = canonicalize.JCS(sanitize.ToJSONSafe(rec))
		if err != nil {
			return []byte("{}")
		}
	}
	return b
}
