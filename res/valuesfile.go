package res

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ValuesFile collects the resources of one type under one configuration,
// destined for a single values XML document.
type ValuesFile struct {
	pkg       *Package
	typ       *TypeSpec
	config    *Type
	resources []*Resource
}

func (f *ValuesFile) Package() *Package   { return f.pkg }
func (f *ValuesFile) TypeSpec() *TypeSpec { return f.typ }
func (f *ValuesFile) Config() *Type       { return f.config }

// Path is the res/ relative location, e.g. values-de/strings.xml.
func (f *ValuesFile) Path() string {
	name := f.typ.Name()
	if !strings.HasSuffix(name, "s") {
		name += "s"
	}
	return "values" + f.config.flags.Qualifiers() + "/" + name + ".xml"
}

// ListResources returns the file's resources ordered by spec id.
func (f *ValuesFile) ListResources() []*Resource {
	return f.resources
}

func (f *ValuesFile) isSynthesized(res *Resource) bool {
	return f.pkg.IsSynthesized(res.spec.id)
}

// GroupValuesFiles buckets every values XML serializable resource of pkg by
// type and configuration. Files are ordered by path.
func GroupValuesFiles(pkg *Package) []*ValuesFile {
	type key struct {
		typ    *TypeSpec
		config *Type
	}
	files := make(map[key]*ValuesFile)
	var ret []*ValuesFile

	for _, spec := range pkg.ListResSpecs() {
		for _, res := range spec.ListResources() {
			if res.value.kind == KindFile {
				continue
			}
			k := key{typ: spec.typ, config: res.config}
			f, prs := files[k]
			if !prs {
				f = &ValuesFile{pkg: pkg, typ: spec.typ, config: res.config}
				files[k] = f
				ret = append(ret, f)
			}
			f.resources = append(f.resources, res)
		}
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Path() < ret[j].Path()
	})
	return ret
}

// SerializeValuesFile writes f as a <resources> document, leaving out ids
// that were only synthesized for attr symbols.
func SerializeValuesFile(w io.Writer, f *ValuesFile) error {
	x := NewXMLWriter(w)
	x.StartDocument()
	x.StartTag("resources")
	for _, res := range f.resources {
		if f.isSynthesized(res) {
			continue
		}
		res.value.SerializeToResValuesXML(x, res)
	}
	x.EndTag("resources")
	return x.Flush()
}

// SerializePublicXML writes the public.xml of pkg, pinning every spec to its
// id.
func SerializePublicXML(w io.Writer, pkg *Package) error {
	x := NewXMLWriter(w)
	x.StartDocument()
	x.StartTag("resources")
	for _, spec := range pkg.ListResSpecs() {
		x.StartTag("public")
		x.Attribute("type", spec.typ.Name())
		x.Attribute("name", spec.Name())
		x.Attribute("id", fmt.Sprintf("0x%08x", uint32(spec.id)))
		x.EndTag("public")
	}
	x.EndTag("resources")
	return x.Flush()
}
