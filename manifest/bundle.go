package manifest

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	bundleEncMode cbor.EncMode
	bundleDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("manifest: failed to create CBOR enc mode: %v", err))
	}
	bundleEncMode = em

	dm, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("manifest: failed to create CBOR dec mode: %v", err))
	}
	bundleDecMode = dm
}

// MarshalBundle encodes m as a canonical CBOR bundle. Includes must already
// be resolved: a bundle is self-contained.
func MarshalBundle(m *Manifest) ([]byte, error) {
	if len(m.Includes) > 0 {
		return nil, fmt.Errorf("manifest: bundle with unresolved includes %v", m.Includes)
	}
	return bundleEncMode.Marshal(m)
}

// UnmarshalBundle decodes a bundle written by MarshalBundle.
func UnmarshalBundle(data []byte) (*Manifest, error) {
	var m Manifest
	if err := bundleDecMode.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal bundle: %w", err)
	}
	return &m, nil
}
