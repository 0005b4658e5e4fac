// Package wire encodes finalize reports as canonical CBOR, so two reports
// of the same dispatch state are byte-identical.
package wire

import (
	"fmt"

	"github.com/chazu/multimethods/mm"
	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalReport serializes a Report to CBOR bytes.
func MarshalReport(r *mm.Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes.
func UnmarshalReport(data []byte) (*mm.Report, error) {
	var r mm.Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wire: unmarshal report: %w", err)
	}
	return &r, nil
}
