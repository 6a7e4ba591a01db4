package key

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPEM           = errors.New("malformed PEM")
	ErrMalformedDER           = errors.New("malformed DER")
	ErrUnsupportedAlgorithm   = errors.New("unsupported key algorithm")
	ErrUnsupportedCurve       = errors.New("unsupported curve")
	ErrUnsupportedPointFormat = errors.New("unsupported EC point format")
)

// UnsupportedAlgorithmError reports an algorithm identifier that does not
// name a supported key family. It matches ErrUnsupportedAlgorithm.
type UnsupportedAlgorithmError struct {
	// OID is the identifier in dotted notation, e.g. "1.3.101.112".
	OID string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("%s %s", ErrUnsupportedAlgorithm, e.OID)
}

func (e *UnsupportedAlgorithmError) Is(target error) bool {
	return target == ErrUnsupportedAlgorithm
}

func malformedDER(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDER, fmt.Sprintf(format, args...))
}

func malformedPEM(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPEM, fmt.Sprintf(format, args...))
}

func fmtUnsupportedCurve(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedCurve, fmt.Sprintf(format, args...))
}

func fmtUnsupportedPointFormat(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedPointFormat, fmt.Sprintf(format, args...))
}
