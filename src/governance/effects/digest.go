package effects

import (
	"encoding/json"
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/stake-plus/bandgov/src/shared/gov"
)

// Digest fingerprints an effect list so execution logs of the same
// submission can be matched up.
func Digest(list []gov.Effect) string {
	raw, err := json.Marshal(list)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Checksum64(raw))
}
