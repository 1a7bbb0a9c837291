// Package chunk reads the little-endian chunked containers used by compiled
// Android resources.
package chunk

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	TypeNull       = 0x0000
	TypeStringPool = 0x0001
	TypeTable      = 0x0002
	TypeXML        = 0x0003

	TypeXMLFirst          = 0x0100
	TypeXMLStartNamespace = 0x0100
	TypeXMLEndNamespace   = 0x0101
	TypeXMLStartElement   = 0x0102
	TypeXMLEndElement     = 0x0103
	TypeXMLCData          = 0x0104
	TypeXMLLast           = 0x017f
	TypeXMLResourceMap    = 0x0180

	TypeTablePackage       = 0x0200
	TypeTableType          = 0x0201
	TypeTableTypeSpec      = 0x0202
	TypeTableLibrary       = 0x0203
	TypeTableOverlay       = 0x0204
	TypeTableOverlayPolicy = 0x0205
	TypeTableStagedAlias   = 0x0206

	HeaderSize = (2 + 2 + 4)
)

// Header is the common prefix of every chunk. Start is the offset of the
// header itself inside the buffer it was read from.
type Header struct {
	Type       uint16
	HeaderSize uint16
	Size       uint32
	Start      int
}

// End returns the offset just past the chunk.
func (h Header) End() int {
	return h.Start + int(h.Size)
}

// HeaderEnd returns the offset just past the (possibly extended) header.
func (h Header) HeaderEnd() int {
	return h.Start + int(h.HeaderSize)
}

// Magic packs type and header size the way older tools compare the first
// word of a document.
func (h Header) Magic() uint32 {
	return uint32(h.HeaderSize)<<16 | uint32(h.Type)
}

// Reader is a forward cursor over a fully materialized buffer.
type Reader struct {
	bytes.Reader
}

func NewReader(data []byte) *Reader {
	return &Reader{
		Reader: *bytes.NewReader(data),
	}
}

func (r *Reader) Position() int {
	return int(r.Size()) - r.Len()
}

func (r *Reader) SetPosition(pos int) error {
	if pos < 0 || int64(pos) > r.Size() {
		return errors.Errorf("position 0x%x is out of bounds (size 0x%x)", pos, r.Size())
	}
	_, err := r.Seek(int64(pos), io.SeekStart)
	return err
}

func (r *Reader) Skip(n int) error {
	if n < 0 {
		return errors.Errorf("can not skip %d bytes", n)
	}
	if n > r.Len() {
		return errors.Wrapf(io.ErrUnexpectedEOF, "skipping %d bytes at 0x%x", n, r.Position())
	}
	_, err := r.Seek(int64(n), io.SeekCurrent)
	return err
}

// Fields decodes each fixed-size value in order.
func (r *Reader) Fields(values ...any) error {
	for _, v := range values {
		if err := binary.Read(&r.Reader, binary.LittleEndian, v); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return errors.Wrapf(err, "error reading at 0x%x", r.Position())
		}
	}
	return nil
}

func (r *Reader) Uint8() (v uint8, err error) {
	err = r.Fields(&v)
	return
}

func (r *Reader) Uint16() (v uint16, err error) {
	err = r.Fields(&v)
	return
}

func (r *Reader) Uint32() (v uint32, err error) {
	err = r.Fields(&v)
	return
}

func (r *Reader) Int32() (v int32, err error) {
	err = r.Fields(&v)
	return
}

func (r *Reader) Int32s(n int) ([]int32, error) {
	if n < 0 || n*4 > r.Len() {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "reading %d ints at 0x%x", n, r.Position())
	}
	res := make([]int32, n)
	if err := r.Fields(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Next returns a copy of the next n bytes.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "reading %d bytes at 0x%x", n, r.Position())
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(&r.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) Header() (h Header, err error) {
	h.Start = r.Position()
	if err = r.Fields(&h.Type, &h.HeaderSize, &h.Size); err != nil {
		return h, errors.Wrap(err, "error reading chunk header")
	}
	return h, nil
}

// ExpectHeader reads a header and fails unless it has the given type.
func (r *Reader) ExpectHeader(typ uint16) (Header, error) {
	h, err := r.Header()
	if err != nil {
		return h, err
	}
	if h.Type != typ {
		return h, errors.Errorf("invalid chunk type 0x%04x at 0x%x, expected 0x%04x", h.Type, h.Start, typ)
	}
	return h, nil
}
