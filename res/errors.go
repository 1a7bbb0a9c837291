package res

import "github.com/pkg/errors"

var (
	// ErrUndefinedResObject is returned by lookups of unknown packages,
	// types, specs and resources.
	ErrUndefinedResObject = errors.New("undefined resource object")

	ErrDuplicateResource = errors.New("multiple resources")

	ErrUnsupportedValueType = errors.New("unsupported value type")
)

func undefined(format string, args ...any) error {
	return errors.Wrapf(ErrUndefinedResObject, format, args...)
}
