package peres

import (
	"fmt"
	"slices"
)

// Raw is the payload of resources without a registered codec.
type Raw []byte

type rawCodec struct{}

func (rawCodec) Decode(data []byte, _ uint16) (any, error) {
	return Raw(slices.Clone(data)), nil
}

func (rawCodec) Encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case Raw:
		return p, nil
	case []byte:
		return p, nil
	default:
		return nil, fmt.Errorf("%w: raw codec cannot encode %T", ErrUnsupportedKind, payload)
	}
}
