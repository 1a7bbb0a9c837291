package main

import (
	"sort"

	"github.com/samber/lo"

	"github.com/avast/apkres/arsc"
	"github.com/avast/apkres/res"
)

type summary struct {
	Packages       []packageSummary `yaml:"packages"`
	CurrentPackage string           `yaml:"current_package,omitempty"`
	Libraries      map[int]string   `yaml:"libraries,omitempty"`
	SharedLibrary  bool             `yaml:"shared_library,omitempty"`
	Sparse         bool             `yaml:"sparse_resources,omitempty"`
}

type packageSummary struct {
	ID      int           `yaml:"id"`
	Name    string        `yaml:"name"`
	Specs   int           `yaml:"specs"`
	Dummies int           `yaml:"dummies,omitempty"`
	Types   []typeSummary `yaml:"types"`
	Configs []string      `yaml:"configs"`
}

type typeSummary struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Entries int    `yaml:"entries"`
}

func buildSummary(table *res.Table, result *arsc.Result) summary {
	s := summary{
		Packages: lo.Map(result.Packages, func(pkg *res.Package, _ int) packageSummary {
			return summarizePackage(pkg)
		}),
		Libraries:     result.Libraries,
		SharedLibrary: table.SharedLibrary(),
		Sparse:        table.SparseResources(),
	}
	if pkg, err := result.OnePackage(); err == nil {
		s.CurrentPackage = pkg.Name()
	}
	return s
}

func summarizePackage(pkg *res.Package) packageSummary {
	types := lo.Map(pkg.ListTypes(), func(t *res.TypeSpec, _ int) typeSummary {
		return typeSummary{ID: t.ID(), Name: t.Name(), Entries: t.EntryCount()}
	})
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })

	configs := lo.Map(pkg.ListConfigs(), func(t *res.Type, _ int) string {
		return "values" + t.Flags().Qualifiers()
	})
	sort.Strings(configs)

	specs := pkg.ListResSpecs()
	return packageSummary{
		ID:      pkg.ID(),
		Name:    pkg.Name(),
		Specs:   len(specs),
		Dummies: len(lo.Filter(specs, func(s *res.ResSpec, _ int) bool { return s.IsDummy() })),
		Types:   types,
		Configs: configs,
	}
}
