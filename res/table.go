package res

import (
	"io"
	"log"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/avast/apkres/resconfig"
)

// FrameworkLoader loads a framework package on demand when a reference
// points to a package that is not in the table yet. It is expected to add
// the package to the table itself.
type FrameworkLoader func(t *Table, id int) (*Package, error)

// Table is the registry of all packages decoded in one session.
type Table struct {
	packagesByID   map[int]*Package
	packagesByName map[string]*Package
	mainPackages   []*Package
	framePackages  []*Package

	packageRenamed  string
	packageOriginal string
	packageID       int
	sharedLibrary   bool
	sparseResources bool

	sdkInfo map[string]string

	errCounter resconfig.ErrCounter

	FrameworkLoader FrameworkLoader
	Logger          *log.Logger
}

func NewTable() *Table {
	return &Table{
		packagesByID:   make(map[int]*Package),
		packagesByName: make(map[string]*Package),
		sdkInfo:        make(map[string]string),
		Logger:         log.New(io.Discard, "", 0),
	}
}

// ResSpec resolves a raw resource id. A zero package byte is a shared
// library referring to itself and is replaced by the table's package id.
func (t *Table) ResSpec(rawID uint32) (*ResSpec, error) {
	if rawID>>24 == 0 {
		pkgID := t.packageID
		if pkgID == 0 {
			pkgID = 2
		}
		rawID = (0xff000000 & (uint32(pkgID) << 24)) | rawID
	}
	return t.ResSpecByID(ID(rawID))
}

func (t *Table) ResSpecByID(id ID) (*ResSpec, error) {
	pkg, err := t.PackageByID(id.Package())
	if err != nil {
		return nil, err
	}
	return pkg.ResSpec(id)
}

func (t *Table) PackageByID(id int) (*Package, error) {
	if pkg, prs := t.packagesByID[id]; prs {
		return pkg, nil
	}
	if t.FrameworkLoader != nil {
		pkg, err := t.FrameworkLoader(t, id)
		if err != nil {
			return nil, errors.Wrapf(ErrUndefinedResObject, "package: id=%d: %s", id, err.Error())
		}
		if pkg != nil {
			return pkg, nil
		}
	}
	return nil, undefined("package: id=%d", id)
}

func (t *Table) PackageByName(name string) (*Package, error) {
	if pkg, prs := t.packagesByName[name]; prs {
		return pkg, nil
	}
	return nil, undefined("package: name=%s", name)
}

func (t *Table) HasPackage(id int) bool {
	_, prs := t.packagesByID[id]
	return prs
}

// AddPackage registers pkg as a main (application) or framework package.
func (t *Table) AddPackage(pkg *Package, main bool) error {
	if _, prs := t.packagesByID[pkg.id]; prs {
		return errors.Errorf("Multiple packages: id=%d", pkg.id)
	}
	if _, prs := t.packagesByName[pkg.name]; prs {
		return errors.Errorf("Multiple packages: name=%s", pkg.name)
	}

	t.packagesByID[pkg.id] = pkg
	t.packagesByName[pkg.name] = pkg
	if main {
		t.mainPackages = append(t.mainPackages, pkg)
	} else {
		t.framePackages = append(t.framePackages, pkg)
	}
	return nil
}

func (t *Table) ListMainPackages() []*Package {
	return t.mainPackages
}

func (t *Table) ListFramePackages() []*Package {
	return t.framePackages
}

// HighestSpecPackage returns the non-android package with the most specs,
// falling back to the android framework package.
func (t *Table) HighestSpecPackage() (*Package, error) {
	ids := lo.Keys(t.packagesByID)
	sort.Ints(ids)

	id, value := 0, 0
	for _, pkgID := range ids {
		pkg := t.packagesByID[pkgID]
		if pkg.ResSpecCount() > value && !strings.EqualFold(pkg.name, "android") {
			value = pkg.ResSpecCount()
			id = pkg.id
		}
	}
	if id == 0 {
		return t.PackageByID(1)
	}
	return t.PackageByID(id)
}

// CurrentPackage is the package truncated references are resolved against.
func (t *Table) CurrentPackage() (*Package, error) {
	if pkg, prs := t.packagesByID[t.packageID]; prs {
		return pkg, nil
	}
	if len(t.mainPackages) == 1 {
		return t.mainPackages[0], nil
	}
	return t.HighestSpecPackage()
}

// Value returns the default value of package:type/name.
func (t *Table) Value(pkgName, typeName, name string) (*Value, error) {
	pkg, err := t.PackageByName(pkgName)
	if err != nil {
		return nil, err
	}
	typ, err := pkg.Type(typeName)
	if err != nil {
		return nil, err
	}
	spec, err := typ.ResSpec(name)
	if err != nil {
		return nil, err
	}
	res, err := spec.DefaultResource()
	if err != nil {
		return nil, err
	}
	return res.Value(), nil
}

// ErrCounter numbers invalid configurations decoded into this table.
func (t *Table) ErrCounter() *resconfig.ErrCounter {
	return &t.errCounter
}

func (t *Table) SetPackageRenamed(name string)  { t.packageRenamed = name }
func (t *Table) SetPackageOriginal(name string) { t.packageOriginal = name }
func (t *Table) SetPackageID(id int)            { t.packageID = id }
func (t *Table) SetSharedLibrary(flag bool)     { t.sharedLibrary = flag }
func (t *Table) SetSparseResources(flag bool)   { t.sparseResources = flag }

func (t *Table) PackageRenamed() string  { return t.packageRenamed }
func (t *Table) PackageOriginal() string { return t.packageOriginal }
func (t *Table) PackageID() int          { return t.packageID }
func (t *Table) SharedLibrary() bool     { return t.sharedLibrary }
func (t *Table) SparseResources() bool   { return t.sparseResources }

func (t *Table) AddSdkInfo(key, value string) {
	t.sdkInfo[key] = value
}

func (t *Table) ClearSdkInfo() {
	t.sdkInfo = make(map[string]string)
}

func (t *Table) SdkInfo() map[string]string {
	return t.sdkInfo
}

func (t *Table) logf(format string, args ...any) {
	if t.Logger != nil {
		t.Logger.Printf(format, args...)
	}
}
