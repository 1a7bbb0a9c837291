package res

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	TypeNameArray   = "array"
	TypeNamePlurals = "plurals"
	TypeNameStyles  = "style"
	TypeNameAttr    = "attr"
)

// TypeSpec is one named resource type ("string", "drawable", ...) of a package.
type TypeSpec struct {
	name       string
	pkg        *Package
	id         int
	entryCount int

	resSpecs map[string]*ResSpec
}

func NewTypeSpec(pkg *Package, id int, name string, entryCount int) *TypeSpec {
	return &TypeSpec{
		name:       name,
		pkg:        pkg,
		id:         id,
		entryCount: entryCount,
		resSpecs:   make(map[string]*ResSpec),
	}
}

func (t *TypeSpec) Name() string      { return t.name }
func (t *TypeSpec) ID() int           { return t.id }
func (t *TypeSpec) EntryCount() int   { return t.entryCount }
func (t *TypeSpec) Package() *Package { return t.pkg }
func (t *TypeSpec) String() string    { return t.name }

func (t *TypeSpec) IsString() bool {
	return strings.EqualFold(t.name, "string")
}

func (t *TypeSpec) ResSpec(name string) (*ResSpec, error) {
	if spec := t.ResSpecUnsafe(name); spec != nil {
		return spec, nil
	}
	return nil, undefined("resource spec: %s/%s", t.name, name)
}

// ResSpecUnsafe returns nil for unknown names.
func (t *TypeSpec) ResSpecUnsafe(name string) *ResSpec {
	return t.resSpecs[name]
}

func (t *TypeSpec) AddResSpec(spec *ResSpec) error {
	if _, prs := t.resSpecs[spec.Name()]; prs {
		return errors.Errorf("Multiple res specs: %s/%s", t.name, spec.Name())
	}
	t.resSpecs[spec.Name()] = spec
	return nil
}

func (t *TypeSpec) RemoveResSpec(spec *ResSpec) {
	delete(t.resSpecs, spec.Name())
}
