package res

// AttrDecoder renders binary XML attribute values through a resource table:
// references become @type/name, enum and flag values their symbolic names.
type AttrDecoder struct {
	table *Table
}

func NewAttrDecoder(table *Table) *AttrDecoder {
	return &AttrDecoder{table: table}
}

func (d *AttrDecoder) Table() *Table {
	return d.table
}

// Decode renders one attribute value. nameID is the resource id of the
// attribute name, 0 when unknown. An empty raw string is treated as absent
// for non-string types.
func (d *AttrDecoder) Decode(typ uint8, data uint32, raw string, nameID uint32) (string, error) {
	pkg, err := d.table.CurrentPackage()
	if err != nil {
		return "", err
	}

	var value *Value
	if raw != "" || typ == TypeString {
		value, err = pkg.ValueFactory().NewRaw(typ, data, raw)
	} else {
		value, err = pkg.ValueFactory().New(typ, data)
	}
	if err != nil {
		return "", err
	}

	if nameID > 0 {
		if spec, err := d.table.ResSpec(nameID); err == nil {
			if def, err := spec.DefaultResource(); err == nil && def.value.IsAttr() {
				if decoded, ok := def.value.ConvertToResXMLFormat(value); ok {
					return decoded, nil
				}
			}
		}
	}
	return value.EncodeAsResXMLAttr(), nil
}

// DecodeManifestAttr returns the name of the attribute with resource id id.
// A zero package byte refers to the current package.
func (d *AttrDecoder) DecodeManifestAttr(id uint32) (string, error) {
	if id == 0 {
		return "", undefined("attribute: 0x%08x", id)
	}
	if id>>24 == 0 {
		pkg, err := d.table.CurrentPackage()
		if err != nil {
			return "", err
		}
		pkgID := pkg.id
		if pkgID == 0 {
			pkgID = 2
		}
		id = (0xff000000 & (uint32(pkgID) << 24)) | id
	}
	spec, err := d.table.ResSpecByID(ID(id))
	if err != nil {
		return "", err
	}
	return spec.Name(), nil
}
