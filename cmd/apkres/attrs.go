package main

import (
	"os"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"

	"github.com/avast/apkres/axml"
	"github.com/avast/apkres/res"
)

// loadAttrNames reads {"0x0101021b": "versionCode", ...}. Framework
// attribute names are unknown without the framework table, this fills them
// in.
func loadAttrNames(path string) (map[uint32]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read attribute names")
	}
	return parseAttrNames(data)
}

func parseAttrNames(data []byte) (map[uint32]string, error) {
	names := make(map[uint32]string)
	err := jsonparser.ObjectEach(data, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		id, err := strconv.ParseUint(string(key), 0, 32)
		if err != nil {
			return errors.Wrapf(err, "invalid attribute id %q", key)
		}
		if typ != jsonparser.String {
			return errors.Errorf("attribute 0x%08x: name must be a string, got %s", id, typ)
		}
		name, err := jsonparser.ParseString(value)
		if err != nil {
			return errors.Wrapf(err, "attribute 0x%08x", id)
		}
		names[uint32(id)] = name
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid attribute names")
	}
	return names, nil
}

// namedAttrDecoder falls back to a fixed name map for attribute names. The
// embedded decoder may be nil.
type namedAttrDecoder struct {
	axml.AttrDecoder
	names map[uint32]string
}

func (d *namedAttrDecoder) DecodeManifestAttr(id uint32) (string, error) {
	if d.AttrDecoder != nil {
		if name, err := d.AttrDecoder.DecodeManifestAttr(id); err == nil {
			return name, nil
		}
	}
	if name, prs := d.names[id]; prs {
		return name, nil
	}
	return "", errors.Errorf("unknown attribute 0x%08x", id)
}

func (d *namedAttrDecoder) Decode(typ uint8, data uint32, raw string, nameID uint32) (string, error) {
	if d.AttrDecoder != nil {
		return d.AttrDecoder.Decode(typ, data, raw, nameID)
	}
	if typ == res.TypeString {
		return raw, nil
	}
	if s, ok := res.CoerceToString(typ, data); ok {
		return s, nil
	}
	return "", errors.Errorf("unsupported value type 0x%02x", typ)
}
