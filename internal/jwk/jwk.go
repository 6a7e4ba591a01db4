// Package jwk maps decoded keys to JSON Web Keys (RFC 7517, RFC 7518).
package jwk

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/zarvd/pem2jwk/internal/key"
)

// Member names.
const (
	KeyTypeKey   = "kty"
	KeyIDKey     = "kid"
	UseKey       = "use"
	AlgorithmKey = "alg"
)

// Key types.
const (
	KeyTypeEC  = "EC"
	KeyTypeRSA = "RSA"
)

// Field is a single JWK member. Every value is a string: binary values are
// base64url encoded without padding.
type Field struct {
	Name  string
	Value string
}

// JWK is an immutable JSON Web Key. Members are ordered with "kty" first and
// the rest sorted by name, so identical keys always serialize identically.
type JWK struct {
	fields []Field
}

type options struct {
	keyID           string
	thumbprintKeyID bool
	use             string
	algorithm       string
}

type Option func(*options)

// WithKeyID sets the "kid" member.
func WithKeyID(id string) Option {
	return func(o *options) {
		o.keyID = id
		o.thumbprintKeyID = false
	}
}

// WithThumbprintKeyID sets "kid" to the RFC 7638 thumbprint of the key.
func WithThumbprintKeyID() Option {
	return func(o *options) {
		o.thumbprintKeyID = true
	}
}

// WithUse sets the "use" member, e.g. "sig" or "enc".
func WithUse(use string) Option {
	return func(o *options) {
		o.use = use
	}
}

// WithAlgorithm sets the "alg" member.
func WithAlgorithm(alg string) Option {
	return func(o *options) {
		o.algorithm = alg
	}
}

// FromKey builds the JWK of k. Without options only the key type and key
// parameters are present.
func FromKey(k key.Key, opts ...Option) JWK {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fields := keyFields(k)
	if o.thumbprintKeyID {
		o.keyID = Thumbprint(k)
	}
	for _, f := range []Field{
		{KeyIDKey, o.keyID},
		{UseKey, o.use},
		{AlgorithmKey, o.algorithm},
	} {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}

	slices.SortFunc(fields, compareFields)
	return JWK{fields: fields}
}

func compareFields(a, b Field) int {
	switch {
	case a.Name == b.Name:
		return 0
	case a.Name == KeyTypeKey:
		return -1
	case b.Name == KeyTypeKey:
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

func keyFields(k key.Key) []Field {
	switch k := k.(type) {
	case *key.ECPublicKey:
		return ecFields(k)
	case *key.ECPrivateKey:
		return append(ecFields(&k.ECPublicKey), Field{"d", encode(k.D)})
	case *key.RSAPublicKey:
		return rsaFields(k)
	case *key.RSAPrivateKey:
		return append(rsaFields(&k.RSAPublicKey),
			Field{"d", encodeUint(k.D)},
			Field{"p", encodeUint(k.P)},
			Field{"q", encodeUint(k.Q)},
			Field{"dp", encodeUint(k.DP)},
			Field{"dq", encodeUint(k.DQ)},
			Field{"qi", encodeUint(k.QI)},
		)
	default:
		panic(fmt.Sprintf("jwk: unsupported key type %T", k))
	}
}

// ecFields encodes the coordinates at the curve width the decoder fixed.
func ecFields(k *key.ECPublicKey) []Field {
	return []Field{
		{KeyTypeKey, KeyTypeEC},
		{"crv", k.Curve.Name()},
		{"x", encode(k.X)},
		{"y", encode(k.Y)},
	}
}

func rsaFields(k *key.RSAPublicKey) []Field {
	return []Field{
		{KeyTypeKey, KeyTypeRSA},
		{"n", encodeUint(k.N)},
		{"e", encodeUint(k.E)},
	}
}

func encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func encodeUint(u key.Uint) string {
	return encode(u.Bytes())
}

// DefaultAlgorithm returns the JWS algorithm conventionally used with k:
// ES256, ES384 or ES512 for EC keys and RS256 for RSA keys.
func DefaultAlgorithm(k key.Key) string {
	switch k := k.Public().(type) {
	case *key.ECPublicKey:
		return k.Curve.Algorithm()
	case *key.RSAPublicKey:
		return "RS256"
	default:
		panic(fmt.Sprintf("jwk: unsupported key type %T", k))
	}
}

// Thumbprint returns the base64url encoded SHA-256 JWK thumbprint of the
// public part of k (RFC 7638).
func Thumbprint(k key.Key) string {
	// The required members are exactly the public key members, which
	// RFC 7638 orders lexicographically.
	fields := keyFields(k.Public())
	slices.SortFunc(fields, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })

	b, err := marshalFields(fields)
	if err != nil {
		panic(fmt.Sprintf("jwk: marshal thumbprint input: %v", err))
	}
	sum := sha256.Sum256(b)
	return encode(sum[:])
}

// Get returns the value of the named member.
func (j JWK) Get(name string) (string, bool) {
	for _, f := range j.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns a copy of the members in serialization order.
func (j JWK) Fields() []Field {
	return slices.Clone(j.fields)
}

func (j JWK) MarshalJSON() ([]byte, error) {
	return marshalFields(j.fields)
}

func marshalFields(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal member name: %w", err)
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %q: %w", f.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Set is a JWK Set (RFC 7517 section 5).
type Set struct {
	Keys []JWK `json:"keys"`
}

func NewSet(keys ...JWK) Set {
	if keys == nil {
		keys = []JWK{}
	}
	return Set{Keys: keys}
}
