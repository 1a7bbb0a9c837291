package res

// Resource is the immutable value of a spec under one configuration.
type Resource struct {
	config *Type
	spec   *ResSpec
	value  *Value
}

func NewResource(config *Type, spec *ResSpec, value *Value) *Resource {
	return &Resource{config: config, spec: spec, value: value}
}

func (r *Resource) Config() *Type     { return r.config }
func (r *Resource) ResSpec() *ResSpec { return r.spec }
func (r *Resource) Value() *Value     { return r.value }

// Register adds the resource to both its config bucket and its spec.
func (r *Resource) Register(overwrite bool) error {
	if err := r.config.AddResource(r, overwrite); err != nil {
		return err
	}
	return r.spec.AddResource(r, overwrite)
}

// Replace swaps in a new resource holding value for the same spec and
// config. The receiver is left untouched.
func (r *Resource) Replace(value *Value) *Resource {
	res := NewResource(r.config, r.spec, value)
	// Overwriting registration can not fail.
	_ = res.Register(true)
	return res
}

// FilePath is the res/ relative path the resource would be stored under,
// without extension.
func (r *Resource) FilePath() string {
	return r.spec.typ.Name() + r.config.flags.Qualifiers() + "/" + r.spec.Name()
}

func (r *Resource) String() string {
	return r.FilePath()
}
