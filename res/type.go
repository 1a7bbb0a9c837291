package res

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/avast/apkres/resconfig"
)

// Type is a config bucket: every resource of a package under one
// configuration.
type Type struct {
	flags     *resconfig.Flags
	resources map[*ResSpec]*Resource
}

func newType(flags *resconfig.Flags) *Type {
	return &Type{
		flags:     flags,
		resources: make(map[*ResSpec]*Resource),
	}
}

func (t *Type) Flags() *resconfig.Flags {
	return t.flags
}

func (t *Type) String() string {
	return t.flags.String()
}

func (t *Type) Resource(spec *ResSpec) (*Resource, error) {
	if res, prs := t.resources[spec]; prs {
		return res, nil
	}
	return nil, undefined("resource: spec=%s, config=%s", spec, t)
}

// ListResources returns the bucket's resources ordered by spec id.
func (t *Type) ListResources() []*Resource {
	ret := lo.Values(t.resources)
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].spec.id < ret[j].spec.id
	})
	return ret
}

func (t *Type) AddResource(res *Resource, overwrite bool) error {
	if _, prs := t.resources[res.spec]; prs && !overwrite {
		return errors.Wrapf(ErrDuplicateResource, "spec=%s, config=%s", res.spec, t)
	}
	t.resources[res.spec] = res
	return nil
}
