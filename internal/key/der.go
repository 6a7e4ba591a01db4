package key

import (
	"bytes"
	"encoding/asn1"
	"errors"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidPublicKeyRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
)

// structure is the ASN.1 container a DER key is wrapped in.
type structure int

const (
	structureUnknown structure = iota
	structureSPKI
	structurePKCS1Public
	structurePKCS1Private
	structurePKCS8
	structureSEC1
)

var (
	tagSEC1Parameters = cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()
	tagSEC1PublicKey  = cryptobyte_asn1.Tag(1).ContextSpecific().Constructed()
	tagPKCS8Attrs     = cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()
	tagPKCS8PublicKey = cryptobyte_asn1.Tag(1).ContextSpecific()
)

type algorithmIdentifier struct {
	oid    asn1.ObjectIdentifier
	params cryptobyte.String // full parameters element, empty when absent
}

// sniffStructure guesses the container of a bare DER key from the shape of
// its outer SEQUENCE.
func sniffStructure(der []byte) (structure, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return structureUnknown, malformedDER("expected an outer SEQUENCE")
	}

	if seq.PeekASN1Tag(cryptobyte_asn1.SEQUENCE) {
		return structureSPKI, nil
	}
	if !seq.SkipASN1(cryptobyte_asn1.INTEGER) {
		return structureUnknown, malformedDER("unrecognized key structure")
	}

	switch {
	case seq.PeekASN1Tag(cryptobyte_asn1.SEQUENCE):
		return structurePKCS8, nil
	case seq.PeekASN1Tag(cryptobyte_asn1.OCTET_STRING):
		return structureSEC1, nil
	case seq.PeekASN1Tag(cryptobyte_asn1.INTEGER):
		n := 1
		for !seq.Empty() {
			if !seq.SkipASN1(cryptobyte_asn1.INTEGER) {
				return structureUnknown, malformedDER("unrecognized key structure")
			}
			n++
		}
		if n == 2 {
			return structurePKCS1Public, nil
		}
		return structurePKCS1Private, nil
	}
	return structureUnknown, malformedDER("unrecognized key structure")
}

func parseStructure(s structure, der []byte) (Key, error) {
	switch s {
	case structureSPKI:
		return parseSPKI(der)
	case structurePKCS1Public:
		return asKey(parsePKCS1PublicKey(der))
	case structurePKCS1Private:
		return asKey(parsePKCS1PrivateKey(der))
	case structurePKCS8:
		return parsePKCS8PrivateKey(der)
	case structureSEC1:
		return asKey(parseSEC1PrivateKey(der, 0))
	default:
		return nil, malformedDER("unrecognized key structure")
	}
}

func readAlgorithmIdentifier(s *cryptobyte.String) (algorithmIdentifier, error) {
	var algo cryptobyte.String
	if !s.ReadASN1(&algo, cryptobyte_asn1.SEQUENCE) {
		return algorithmIdentifier{}, malformedDER("expected an AlgorithmIdentifier SEQUENCE")
	}
	var ai algorithmIdentifier
	if !algo.ReadASN1ObjectIdentifier(&ai.oid) {
		return algorithmIdentifier{}, malformedDER("expected an algorithm OBJECT IDENTIFIER")
	}
	if !algo.Empty() {
		if !algo.ReadAnyASN1Element(&ai.params, nil) || !algo.Empty() {
			return algorithmIdentifier{}, malformedDER("invalid algorithm parameters")
		}
	}
	return ai, nil
}

// checkRSAParameters accepts absent or NULL rsaEncryption parameters.
func (ai algorithmIdentifier) checkRSAParameters() error {
	if len(ai.params) == 0 || bytes.Equal(ai.params, asn1.NullBytes) {
		return nil
	}
	return malformedDER("rsaEncryption parameters must be NULL")
}

// namedCurve resolves a namedCurve ECParameters element.
func namedCurve(params cryptobyte.String) (Curve, error) {
	if len(params) == 0 {
		return 0, fmtUnsupportedCurve("missing named curve parameter")
	}
	var oid asn1.ObjectIdentifier
	if !params.ReadASN1ObjectIdentifier(&oid) || !params.Empty() {
		return 0, fmtUnsupportedCurve("curve parameters are not a named curve")
	}
	c, ok := curveByOID(oid)
	if !ok {
		return 0, fmtUnsupportedCurve("named curve %s", oid)
	}
	return c, nil
}

func parseSPKI(der []byte) (Key, error) {
	input := cryptobyte.String(der)
	var spki cryptobyte.String
	if !input.ReadASN1(&spki, cryptobyte_asn1.SEQUENCE) {
		return nil, malformedDER("expected a SubjectPublicKeyInfo SEQUENCE")
	}
	if !input.Empty() {
		return nil, malformedDER("trailing data after SubjectPublicKeyInfo")
	}
	ai, err := readAlgorithmIdentifier(&spki)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if !spki.ReadASN1BitStringAsBytes(&payload) {
		return nil, malformedDER("expected a subjectPublicKey BIT STRING")
	}
	if !spki.Empty() {
		return nil, malformedDER("trailing data in SubjectPublicKeyInfo")
	}

	switch {
	case ai.oid.Equal(oidPublicKeyRSA):
		if err := ai.checkRSAParameters(); err != nil {
			return nil, err
		}
		return asKey(parsePKCS1PublicKey(payload))
	case ai.oid.Equal(oidPublicKeyECDSA):
		curve, err := namedCurve(ai.params)
		if err != nil {
			return nil, err
		}
		return asKey(parseUncompressedPoint(curve, payload))
	default:
		return nil, &UnsupportedAlgorithmError{OID: ai.oid.String()}
	}
}

func parsePKCS1PublicKey(der []byte) (*RSAPublicKey, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, malformedDER("expected an RSAPublicKey SEQUENCE")
	}
	if !input.Empty() {
		return nil, malformedDER("trailing data after RSAPublicKey")
	}
	k := &RSAPublicKey{}
	for _, f := range []struct {
		name string
		dst  *Uint
	}{
		{"modulus", &k.N},
		{"publicExponent", &k.E},
	} {
		v, err := readPositiveInteger(&seq, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if !seq.Empty() {
		return nil, malformedDER("trailing data in RSAPublicKey")
	}
	return k, nil
}

func parsePKCS1PrivateKey(der []byte) (*RSAPrivateKey, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, malformedDER("expected an RSAPrivateKey SEQUENCE")
	}
	if !input.Empty() {
		return nil, malformedDER("trailing data after RSAPrivateKey")
	}
	var version int64
	if !seq.ReadASN1Integer(&version) {
		return nil, malformedDER("expected an RSAPrivateKey version")
	}
	switch version {
	case 0:
	case 1:
		return nil, malformedDER("multi-prime RSA private keys are not supported")
	default:
		return nil, malformedDER("unknown RSAPrivateKey version %d", version)
	}

	k := &RSAPrivateKey{}
	for _, f := range []struct {
		name string
		dst  *Uint
	}{
		{"modulus", &k.N},
		{"publicExponent", &k.E},
		{"privateExponent", &k.D},
		{"prime1", &k.P},
		{"prime2", &k.Q},
		{"exponent1", &k.DP},
		{"exponent2", &k.DQ},
		{"coefficient", &k.QI},
	} {
		v, err := readPositiveInteger(&seq, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if !seq.Empty() {
		return nil, malformedDER("trailing data in RSAPrivateKey")
	}
	return k, nil
}

func parsePKCS8PrivateKey(der []byte) (Key, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, malformedDER("expected a PrivateKeyInfo SEQUENCE")
	}
	if !input.Empty() {
		return nil, malformedDER("trailing data after PrivateKeyInfo")
	}
	var version int64
	if !seq.ReadASN1Integer(&version) || (version != 0 && version != 1) {
		return nil, malformedDER("invalid PrivateKeyInfo version")
	}
	ai, err := readAlgorithmIdentifier(&seq)
	if err != nil {
		return nil, err
	}
	var payload cryptobyte.String
	if !seq.ReadASN1(&payload, cryptobyte_asn1.OCTET_STRING) {
		return nil, malformedDER("expected a privateKey OCTET STRING")
	}
	if !seq.SkipOptionalASN1(tagPKCS8Attrs) || !seq.SkipOptionalASN1(tagPKCS8PublicKey) || !seq.Empty() {
		return nil, malformedDER("trailing data in PrivateKeyInfo")
	}

	switch {
	case ai.oid.Equal(oidPublicKeyRSA):
		if err := ai.checkRSAParameters(); err != nil {
			return nil, err
		}
		return asKey(parsePKCS1PrivateKey(payload))
	case ai.oid.Equal(oidPublicKeyECDSA):
		curve, err := namedCurve(ai.params)
		if err != nil {
			return nil, err
		}
		return asKey(parseSEC1PrivateKey(payload, curve))
	default:
		return nil, &UnsupportedAlgorithmError{OID: ai.oid.String()}
	}
}

// parseSEC1PrivateKey parses an ECPrivateKey. outer is the curve named by an
// enclosing PKCS#8 AlgorithmIdentifier, or zero.
func parseSEC1PrivateKey(der []byte, outer Curve) (*ECPrivateKey, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, malformedDER("expected an ECPrivateKey SEQUENCE")
	}
	if !input.Empty() {
		return nil, malformedDER("trailing data after ECPrivateKey")
	}
	var version int64
	if !seq.ReadASN1Integer(&version) || version != 1 {
		return nil, malformedDER("invalid ECPrivateKey version")
	}
	var scalar cryptobyte.String
	if !seq.ReadASN1(&scalar, cryptobyte_asn1.OCTET_STRING) {
		return nil, malformedDER("expected a privateKey OCTET STRING")
	}
	var params, pub cryptobyte.String
	var hasParams, hasPub bool
	if !seq.ReadOptionalASN1(&params, &hasParams, tagSEC1Parameters) ||
		!seq.ReadOptionalASN1(&pub, &hasPub, tagSEC1PublicKey) ||
		!seq.Empty() {
		return nil, malformedDER("trailing data in ECPrivateKey")
	}

	curve := outer
	if hasParams {
		c, err := namedCurve(params)
		if err != nil {
			return nil, err
		}
		if outer != 0 && c != outer {
			return nil, malformedDER("ECPrivateKey curve %s does not match %s", c, outer)
		}
		curve = c
	}
	if curve == 0 {
		return nil, fmtUnsupportedCurve("missing named curve parameter")
	}

	d, err := fixedWidth(scalar, curve.Size())
	if err != nil {
		return nil, err
	}

	var point []byte
	if hasPub {
		if !pub.ReadASN1BitStringAsBytes(&point) || !pub.Empty() {
			return nil, malformedDER("expected a publicKey BIT STRING")
		}
	} else {
		priv, err := curves[curve].ecdh().NewPrivateKey(d)
		if err != nil {
			return nil, malformedDER("invalid %s private scalar", curve)
		}
		point = priv.PublicKey().Bytes()
	}
	ecPub, err := parseUncompressedPoint(curve, point)
	if err != nil {
		return nil, err
	}
	return &ECPrivateKey{ECPublicKey: *ecPub, D: d}, nil
}

func parseUncompressedPoint(curve Curve, point []byte) (*ECPublicKey, error) {
	if len(point) == 0 {
		return nil, malformedDER("empty EC point")
	}
	switch point[0] {
	case 0x04:
	case 0x02, 0x03:
		return nil, fmtUnsupportedPointFormat("compressed point (prefix 0x%02x)", point[0])
	default:
		return nil, fmtUnsupportedPointFormat("point prefix 0x%02x", point[0])
	}
	size := curve.Size()
	if len(point) != 1+2*size {
		return nil, malformedDER("%s point is %d bytes, want %d", curve, len(point), 1+2*size)
	}
	return &ECPublicKey{
		Curve: curve,
		X:     bytes.Clone(point[1 : 1+size]),
		Y:     bytes.Clone(point[1+size:]),
	}, nil
}

// asKey converts a concrete parse result to a Key without leaking a typed nil.
func asKey[K Key](k K, err error) (Key, error) {
	if err != nil {
		return nil, err
	}
	return k, nil
}

// readPositiveInteger reads a DER INTEGER that must be greater than zero.
func readPositiveInteger(s *cryptobyte.String, name string) (Uint, error) {
	var content cryptobyte.String
	if !s.ReadASN1(&content, cryptobyte_asn1.INTEGER) {
		return Uint{}, malformedDER("expected INTEGER %s", name)
	}
	mag, err := unsignedMagnitude(content)
	if err != nil {
		return Uint{}, malformedDER("%s: %v", name, err)
	}
	if len(mag) == 1 && mag[0] == 0 {
		return Uint{}, malformedDER("%s must be positive", name)
	}
	return NewUint(mag), nil
}

// unsignedMagnitude strips the sign-guard byte from the content octets of a
// non-negative DER INTEGER. The guard is recognised from the encoding itself:
// a leading zero is only legal when the following byte has its high bit set.
func unsignedMagnitude(content []byte) ([]byte, error) {
	switch {
	case len(content) == 0:
		return nil, errors.New("zero-length INTEGER")
	case content[0]&0x80 != 0:
		return nil, errors.New("negative INTEGER")
	case len(content) > 1 && content[0] == 0 && content[1]&0x80 == 0:
		return nil, errors.New("non-minimal INTEGER encoding")
	case len(content) > 1 && content[0] == 0:
		return content[1:], nil
	}
	return content, nil
}

// fixedWidth left pads b with zeros to width bytes. Longer input is accepted
// only when the excess leading bytes are zero.
func fixedWidth(b []byte, width int) ([]byte, error) {
	u := NewUint(b)
	if n := (u.v.BitLen() + 7) / 8; n > width {
		return nil, malformedDER("value is %d bytes, want at most %d", n, width)
	}
	return u.FillBytes(width), nil
}
