package disk

import (
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// keyVersion changes whenever the rewrite output for identical inputs may
// change.
const keyVersion = "jarmap-remap-v2"

// Key identifies one remap result.
type Key struct {
	// Input is the digest of the input archive.
	Input digest.Digest
	// Table is the digest of the mapping table.
	Table digest.Digest
	// Direction is the translation direction name.
	Direction string
	// Policy names the access policy.
	Policy string
	// StripSignatures reports whether jar signature files are dropped.
	StripSignatures bool
}

// Digest returns the content address for k.
func (k Key) Digest() digest.Digest {
	fields := []string{keyVersion, k.Input.String(), k.Table.String(), k.Direction, k.Policy, strconv.FormatBool(k.StripSignatures)}
	return digest.FromString(strings.Join(fields, "\n"))
}
