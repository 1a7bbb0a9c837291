package res

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/avast/apkres/resconfig"
)

const (
	DuplicateNamePrefix = "APKTOOL_DUPLICATE_"
	DummyValuePrefix    = "APKTOOL_DUMMYVAL_"
	DummyNamePrefix     = "APKTOOL_DUMMY_"
)

// ResSpec is one resource identity, holding its value per configuration.
type ResSpec struct {
	id   ID
	name string
	pkg  *Package
	typ  *TypeSpec

	resources map[string]*Resource
	order     []string
}

// NewResSpec names the spec after name, unless the name is empty or already
// taken in typ, in which case a placeholder name is synthesized.
func NewResSpec(id ID, name string, pkg *Package, typ *TypeSpec) *ResSpec {
	var cleanName string
	if typ.ResSpecUnsafe(name) != nil {
		cleanName = fmt.Sprintf("%s%s_%s", DuplicateNamePrefix, typ, id)
	} else if name == "" {
		cleanName = DummyValuePrefix + id.String()
	} else {
		cleanName = name
	}

	return &ResSpec{
		id:        id,
		name:      cleanName,
		pkg:       pkg,
		typ:       typ,
		resources: make(map[string]*Resource),
	}
}

func (s *ResSpec) ID() ID              { return s.id }
func (s *ResSpec) Package() *Package   { return s.pkg }
func (s *ResSpec) TypeSpec() *TypeSpec { return s.typ }

// Name is the spec name made safe for XML attributes.
func (s *ResSpec) Name() string {
	return strings.ReplaceAll(s.name, "\"", "q")
}

func (s *ResSpec) String() string {
	return fmt.Sprintf("%s %s/%s", s.id, s.typ, s.name)
}

// FullName renders [package:][type/]name; the package is left out when
// relativeTo is the spec's own package.
func (s *ResSpec) FullName(relativeTo *Package, excludeType bool) string {
	return s.fullName(s.pkg == relativeTo, excludeType)
}

func (s *ResSpec) fullName(excludePackage, excludeType bool) string {
	var sb strings.Builder
	if !excludePackage {
		sb.WriteString(s.pkg.Name())
		sb.WriteByte(':')
	}
	if !excludeType {
		sb.WriteString(s.typ.Name())
		sb.WriteByte('/')
	}
	sb.WriteString(s.Name())
	return sb.String()
}

func (s *ResSpec) IsDummy() bool {
	return strings.HasPrefix(s.Name(), DummyNamePrefix)
}

// ListResources returns the resources in insertion order of their configs.
func (s *ResSpec) ListResources() []*Resource {
	ret := make([]*Resource, 0, len(s.order))
	for _, key := range s.order {
		ret = append(ret, s.resources[key])
	}
	return ret
}

func (s *ResSpec) Resource(config *resconfig.Flags) (*Resource, error) {
	if res, prs := s.resources[config.Key()]; prs {
		return res, nil
	}
	return nil, undefined("resource: spec=%s, config=%s", s, config)
}

func (s *ResSpec) ResourceOfType(t *Type) (*Resource, error) {
	return s.Resource(t.flags)
}

func (s *ResSpec) DefaultResource() (*Resource, error) {
	return s.Resource(resconfig.Default())
}

func (s *ResSpec) HasDefaultResource() bool {
	_, prs := s.resources[resconfig.Default().Key()]
	return prs
}

// AddResource stores res under its config. Without overwrite, a second
// resource for the same config fails with ErrDuplicateResource.
func (s *ResSpec) AddResource(res *Resource, overwrite bool) error {
	key := res.config.flags.Key()
	if _, prs := s.resources[key]; prs {
		if !overwrite {
			return errors.Wrapf(ErrDuplicateResource, "spec=%s, config=%s", s, res.config)
		}
	} else {
		s.order = append(s.order, key)
	}
	s.resources[key] = res
	return nil
}
