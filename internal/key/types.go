package key

import (
	"crypto/ecdh"
	"encoding/asn1"
	"fmt"
	"math/big"
)

// Key is a decoded asymmetric key. The concrete type is one of
// *RSAPublicKey, *RSAPrivateKey, *ECPublicKey or *ECPrivateKey.
type Key interface {
	// Public returns the public half of the key. Public keys return themselves.
	Public() Key

	isKey()
}

var (
	_ Key = (*RSAPublicKey)(nil)
	_ Key = (*RSAPrivateKey)(nil)
	_ Key = (*ECPublicKey)(nil)
	_ Key = (*ECPrivateKey)(nil)
)

type RSAPublicKey struct {
	N Uint
	E Uint
}

func (k *RSAPublicKey) Public() Key { return k }
func (*RSAPublicKey) isKey()        {}

// RSAPrivateKey is a two-prime PKCS#1 private key.
type RSAPrivateKey struct {
	RSAPublicKey

	D  Uint
	P  Uint
	Q  Uint
	DP Uint
	DQ Uint
	QI Uint
}

func (k *RSAPrivateKey) Public() Key {
	pub := k.RSAPublicKey
	return &pub
}

func (*RSAPrivateKey) isKey() {}

// ECPublicKey holds the affine coordinates of a point on a named curve.
// X and Y are always exactly Curve.Size() bytes long.
type ECPublicKey struct {
	Curve Curve
	X     []byte
	Y     []byte
}

func (k *ECPublicKey) Public() Key { return k }
func (*ECPublicKey) isKey()        {}

// ECPrivateKey adds the private scalar D, exactly Curve.Size() bytes long.
type ECPrivateKey struct {
	ECPublicKey

	D []byte
}

func (k *ECPrivateKey) Public() Key {
	pub := k.ECPublicKey
	return &pub
}

func (*ECPrivateKey) isKey() {}

// Uint is an arbitrary-precision unsigned integer.
type Uint struct {
	v *big.Int
}

// NewUint interprets b as an unsigned big-endian integer.
func NewUint(b []byte) Uint {
	return Uint{v: new(big.Int).SetBytes(b)}
}

// Bytes returns the minimal unsigned big-endian encoding. Zero encodes as a
// single zero byte.
func (u Uint) Bytes() []byte {
	if u.v == nil || u.v.Sign() == 0 {
		return []byte{0}
	}
	return u.v.Bytes()
}

// FillBytes returns the value left padded with zeros to width bytes. It
// panics if the value does not fit.
func (u Uint) FillBytes(width int) []byte {
	buf := make([]byte, width)
	if u.v == nil {
		return buf
	}
	return u.v.FillBytes(buf)
}

// Big returns a copy of the value as a *big.Int.
func (u Uint) Big() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(u.v)
}

func (u Uint) String() string {
	return u.Big().String()
}

// Curve is a supported named elliptic curve.
type Curve int

const (
	P256 Curve = iota + 1
	P384
	P521
)

type curveParams struct {
	name string
	size int
	oid  asn1.ObjectIdentifier
	alg  string
	ecdh func() ecdh.Curve
}

var curves = [...]curveParams{
	P256: {name: "P-256", size: 32, oid: asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}, alg: "ES256", ecdh: ecdh.P256},
	P384: {name: "P-384", size: 48, oid: asn1.ObjectIdentifier{1, 3, 132, 0, 34}, alg: "ES384", ecdh: ecdh.P384},
	P521: {name: "P-521", size: 66, oid: asn1.ObjectIdentifier{1, 3, 132, 0, 35}, alg: "ES512", ecdh: ecdh.P521},
}

// Curves lists every supported curve.
func Curves() []Curve {
	return []Curve{P256, P384, P521}
}

func curveByOID(oid asn1.ObjectIdentifier) (Curve, bool) {
	for _, c := range Curves() {
		if c.oid().Equal(oid) {
			return c, true
		}
	}
	return 0, false
}

func (c Curve) valid() bool {
	return c > 0 && int(c) < len(curves)
}

// Name returns the JWK "crv" name of the curve.
func (c Curve) Name() string {
	if !c.valid() {
		return ""
	}
	return curves[c].name
}

// Size returns the byte width of a coordinate or scalar on the curve.
func (c Curve) Size() int {
	if !c.valid() {
		return 0
	}
	return curves[c].size
}

// Algorithm returns the ECDSA JWS algorithm conventionally paired with the curve.
func (c Curve) Algorithm() string {
	if !c.valid() {
		return ""
	}
	return curves[c].alg
}

func (c Curve) oid() asn1.ObjectIdentifier {
	if !c.valid() {
		return nil
	}
	return append(asn1.ObjectIdentifier(nil), curves[c].oid...)
}

func (c Curve) String() string {
	if !c.valid() {
		return fmt.Sprintf("Curve(%d)", int(c))
	}
	return curves[c].name
}

// EncodingHint tells Decode how the input is encoded.
type EncodingHint int

const (
	// EncodingAuto treats input containing a PEM BEGIN marker as PEM and
	// anything else as DER.
	EncodingAuto EncodingHint = iota
	EncodingPEM
	EncodingDER
)

func (h EncodingHint) String() string {
	switch h {
	case EncodingAuto:
		return "auto"
	case EncodingPEM:
		return "pem"
	case EncodingDER:
		return "der"
	default:
		return fmt.Sprintf("EncodingHint(%d)", int(h))
	}
}

func ParseEncodingHint(s string) (EncodingHint, error) {
	switch s {
	case "", "auto":
		return EncodingAuto, nil
	case "pem":
		return EncodingPEM, nil
	case "der":
		return EncodingDER, nil
	default:
		return EncodingAuto, fmt.Errorf("unknown encoding %q", s)
	}
}
