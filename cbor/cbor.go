// Package cbor is the canonical binary codec of the module.
//
// Every structure the envelope layer emits is encoded with RFC 8949 core
// deterministic encoding, and every structure it parses must already be in
// that form: decoding re-encodes the result and rejects the input unless the
// bytes match exactly.
package cbor

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	fxcbor "github.com/fxamacker/cbor/v2"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

// maxNesting bounds the depth of accepted structures.
const maxNesting = 16

var (
	encMode fxcbor.EncMode

	// decMode is used for typed decoding into module structures.
	decMode fxcbor.DecMode

	// verifyMode is used by Verify for untyped, tag-free decoding.
	verifyMode fxcbor.DecMode
)

func init() {
	var err error
	if encMode, err = fxcbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("cbor: encoder options: %v", err))
	}
	strict := fxcbor.DecOptions{
		DupMapKey:         fxcbor.DupMapKeyEnforcedAPF,
		IndefLength:       fxcbor.IndefLengthForbidden,
		UTF8:              fxcbor.UTF8RejectInvalid,
		MaxNestedLevels:   maxNesting,
		ExtraReturnErrors: fxcbor.ExtraDecErrorUnknownField,
	}
	if decMode, err = strict.DecMode(); err != nil {
		panic(fmt.Sprintf("cbor: decoder options: %v", err))
	}
	strict.TagsMd = fxcbor.TagsForbidden
	if verifyMode, err = strict.DecMode(); err != nil {
		panic(fmt.Sprintf("cbor: verifier options: %v", err))
	}
}

// Tag is a tagged data item; Content is encoded as the tag's payload.
type Tag = fxcbor.Tag

// RawTag is a tagged data item whose payload is kept encoded.
type RawTag = fxcbor.RawTag

// Marshal encodes v with core deterministic encoding.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fault.Wrap("cbor.Marshal", fault.KindMalformed, err, "encode %T", v)
	}
	return data, nil
}

// Unmarshal decodes data into v, rejecting duplicate keys, indefinite
// lengths, invalid UTF-8, unknown struct fields, trailing bytes and any
// encoding that is not the canonical one.
func Unmarshal(data []byte, v any) error {
	const op = "cbor.Unmarshal"

	if err := decMode.Unmarshal(data, v); err != nil {
		return fault.Wrap(op, fault.KindMalformed, err, "decode %T", v)
	}
	canonical, err := encMode.Marshal(v)
	if err != nil {
		return fault.Wrap(op, fault.KindMalformed, err, "re-encode %T", v)
	}
	if !bytes.Equal(canonical, data) {
		return fault.Malformed(op, "non-canonical encoding of %T", v)
	}
	return nil
}

// Verify checks that data is a single well-formed item in canonical form,
// restricted to integers, byte and text strings, arrays, maps with integer
// keys, booleans and null.
func Verify(data []byte) error {
	const op = "cbor.Verify"

	if err := fxcbor.Wellformed(data); err != nil {
		return fault.Wrap(op, fault.KindMalformed, err, "not well-formed")
	}
	var v any
	if err := verifyMode.Unmarshal(data, &v); err != nil {
		return fault.Wrap(op, fault.KindMalformed, err, "decode")
	}
	if err := checkValue(v, 0); err != nil {
		return fault.Malformed(op, "%v", err)
	}
	canonical, err := encMode.Marshal(v)
	if err != nil {
		return fault.Wrap(op, fault.KindMalformed, err, "re-encode")
	}
	if !bytes.Equal(canonical, data) {
		return fault.Malformed(op, "non-canonical encoding")
	}
	return nil
}

func checkValue(v any, depth int) error {
	if depth > maxNesting {
		return fmt.Errorf("nesting deeper than %d", maxNesting)
	}
	switch val := v.(type) {
	case nil, bool, int64, uint64, []byte:
		return nil
	case string:
		if !utf8.ValidString(val) {
			return fmt.Errorf("invalid UTF-8 text")
		}
		return nil
	case []any:
		for _, item := range val {
			if err := checkValue(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case map[any]any:
		for key, item := range val {
			switch key.(type) {
			case int64, uint64:
			default:
				return fmt.Errorf("map key of type %T, want integer", key)
			}
			if err := checkValue(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported item of type %T", v)
	}
}
