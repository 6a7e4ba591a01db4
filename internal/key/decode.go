package key

import (
	"bytes"
	"encoding/pem"
	"fmt"
	"strings"
)

var pemBegin = []byte("-----BEGIN")

// structures maps PEM labels to the DER container they carry.
var structures = map[string]structure{
	"PUBLIC KEY":      structureSPKI,
	"RSA PUBLIC KEY":  structurePKCS1Public,
	"PRIVATE KEY":     structurePKCS8,
	"RSA PRIVATE KEY": structurePKCS1Private,
	"EC PRIVATE KEY":  structureSEC1,
}

// Decode decodes a single PEM or DER encoded key.
//
// A PEM input must hold exactly one key block; "EC PARAMETERS" blocks as
// written by `openssl ecparam -genkey` are skipped.
func Decode(input []byte, hint EncodingHint) (Key, error) {
	if !isPEM(input, hint) {
		return ParseDER(input)
	}
	block, rest, err := nextKeyBlock(input)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, malformedPEM("no PEM block found")
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return nil, malformedPEM("unexpected data after %q block", block.Type)
	}
	return parseBlock(block)
}

// DecodeAll decodes every key of a PEM bundle in order. DER input yields a
// single key.
func DecodeAll(input []byte, hint EncodingHint) ([]Key, error) {
	if !isPEM(input, hint) {
		k, err := ParseDER(input)
		if err != nil {
			return nil, err
		}
		return []Key{k}, nil
	}

	var keys []Key
	rest := input
	for {
		var block *pem.Block
		var err error
		block, rest, err = nextKeyBlock(rest)
		if err != nil {
			return nil, fmt.Errorf("PEM block %d: %w", len(keys)+1, err)
		}
		if block == nil {
			break
		}
		k, err := parseBlock(block)
		if err != nil {
			return nil, fmt.Errorf("PEM block %d: %w", len(keys)+1, err)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, malformedPEM("no PEM block found")
	}
	return keys, nil
}

// ParseDER decodes a DER key, detecting its container from its structure.
func ParseDER(der []byte) (Key, error) {
	s, err := sniffStructure(der)
	if err != nil {
		return nil, err
	}
	return parseStructure(s, der)
}

func isPEM(input []byte, hint EncodingHint) bool {
	switch hint {
	case EncodingPEM:
		return true
	case EncodingDER:
		return false
	default:
		return bytes.Contains(input, pemBegin)
	}
}

// nextKeyBlock returns the next PEM block that is not an EC PARAMETERS
// block, or a nil block once only whitespace remains.
func nextKeyBlock(input []byte) (*pem.Block, []byte, error) {
	rest := input
	for {
		if len(bytes.TrimSpace(rest)) == 0 {
			return nil, nil, nil
		}
		block, next := pem.Decode(rest)
		if block == nil {
			return nil, nil, malformedPEM("invalid or incomplete PEM block")
		}
		// pem.Decode skips a broken block and returns the one after it.
		if bytes.Count(rest[:len(rest)-len(next)], pemBegin) > 1 {
			return nil, nil, malformedPEM("invalid PEM block before %q block", block.Type)
		}
		rest = next
		if block.Type != "EC PARAMETERS" {
			return block, rest, nil
		}
	}
}

func parseBlock(block *pem.Block) (Key, error) {
	if strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") || block.Type == "ENCRYPTED PRIVATE KEY" {
		return nil, malformedPEM("encrypted %q blocks are not supported", block.Type)
	}
	s, ok := structures[block.Type]
	if !ok {
		return nil, malformedPEM("unsupported PEM block type %q", block.Type)
	}
	return parseStructure(s, block.Bytes)
}
