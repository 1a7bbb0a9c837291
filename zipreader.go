package apkres

import (
	"archive/zip"
	"encoding/binary"
	"io"
	"os"
	"path"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

const (
	localHeaderSize   = 30
	localHeaderMethod = 8
	localHeaderName   = 26
)

var localHeaderMagic = [4]byte{0x50, 0x4B, 0x03, 0x04}

// Entries Android reads without decompressing when their method is unknown.
var storedEntries = map[string]bool{
	manifestName:  true,
	resourcesName: true,
}

var ErrFileOpened = errors.New("file is already opened")

type localEntry struct {
	offset int64
	method uint16
}

// ZipReader reads APKs that Android accepts but archive/zip refuses. When the
// central directory is broken, entries are recovered by scanning for local
// file headers.
type ZipReader struct {
	File map[string]*ZipReaderFile

	// FilesOrdered keeps the archive order. A crafted archive may list the
	// same file more than once.
	FilesOrdered []*ZipReaderFile

	src   io.ReadSeeker
	owned *os.File
}

// ZipReaderFile is one name in the archive, possibly backed by several
// local entries. Iterate them with Open, then for f.Next() { f.Read(...) }.
type ZipReaderFile struct {
	Name  string
	IsDir bool

	src    io.ReadSeeker
	reader io.Reader
	closer io.Closer

	zipEntry *zip.File

	entries  []localEntry
	curEntry int
}

func (zf *ZipReaderFile) Open() error {
	if zf.reader != nil {
		return ErrFileOpened
	}

	if zf.zipEntry == nil {
		zf.curEntry = -1
		return nil
	}

	rc, err := zf.zipEntry.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", zf.Name)
	}
	zf.curEntry = 0
	zf.reader = rc
	zf.closer = rc
	return nil
}

// Read returns io.EOF at the end of the current entry. Next tells whether
// another entry of the same name follows.
func (zf *ZipReaderFile) Read(p []byte) (int, error) {
	if zf.reader == nil {
		if err := zf.openLocal(); err != nil {
			return 0, err
		}
	}
	return zf.reader.Read(p)
}

func (zf *ZipReaderFile) openLocal() error {
	if zf.curEntry == -1 && !zf.Next() {
		return io.ErrUnexpectedEOF
	}
	if zf.curEntry >= len(zf.entries) {
		return io.ErrUnexpectedEOF
	}

	e := zf.entries[zf.curEntry]
	if _, err := zf.src.Seek(e.offset, io.SeekStart); err != nil {
		return err
	}

	// Android inflates every method except store.
	if e.method == zip.Store {
		zf.reader = zf.src
		return nil
	}
	rc := newFlateReader(zf.src)
	zf.reader = rc
	zf.closer = rc
	return nil
}

func (zf *ZipReaderFile) Next() bool {
	if len(zf.entries) == 0 && zf.reader != nil {
		zf.curEntry++
		return zf.curEntry == 1
	}

	zf.Close()

	if zf.curEntry+1 >= len(zf.entries) {
		return false
	}
	zf.curEntry++
	return true
}

func (zf *ZipReaderFile) Close() error {
	if zf.reader == nil {
		return nil
	}
	var err error
	if zf.closer != nil {
		err = zf.closer.Close()
		zf.closer = nil
	}
	zf.reader = nil
	return err
}

// ZipHeader is nil for entries recovered from local headers.
func (zf *ZipReaderFile) ZipHeader() *zip.FileHeader {
	if zf.zipEntry != nil {
		return &zf.zipEntry.FileHeader
	}
	return nil
}

// ReadAll returns the first entry of this name that reads without error,
// at most limit bytes of it.
func (zf *ZipReaderFile) ReadAll(limit int64) ([]byte, error) {
	if err := zf.Open(); err != nil {
		return nil, err
	}
	defer zf.Close()

	var lastErr error
	for zf.Next() {
		data, err := io.ReadAll(io.LimitReader(zf, limit))
		if err == nil {
			return data, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return nil, lastErr
}

// ReadFile reads the named entry, failing with os.ErrNotExist when the
// archive has no such file.
func (zr *ZipReader) ReadFile(name string, limit int64) ([]byte, error) {
	zf := zr.File[name]
	if zf == nil {
		return nil, errors.Wrap(os.ErrNotExist, name)
	}
	data, err := zf.ReadAll(limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return data, nil
}

func (zr *ZipReader) Close() error {
	if zr.src == nil {
		return nil
	}

	for _, zf := range zr.File {
		zf.Close()
	}

	var err error
	if zr.owned != nil {
		err = zr.owned.Close()
		zr.owned = nil
	}
	zr.src = nil
	return err
}

type readAtWrapper struct {
	io.ReadSeeker
}

func (w *readAtWrapper) ReadAt(b []byte, off int64) (int, error) {
	if ra, ok := w.ReadSeeker.(io.ReaderAt); ok {
		return ra.ReadAt(b, off)
	}

	oldPos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := w.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(w.ReadSeeker, b)
	if _, serr := w.Seek(oldPos, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	return n, err
}

func OpenZip(path string) (*ZipReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	zr, err := OpenZipReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	zr.owned = f
	return zr, nil
}

// OpenZipReader may seek r to arbitrary positions.
func OpenZipReader(r io.ReadSeeker) (*ZipReader, error) {
	zr := &ZipReader{
		File: make(map[string]*ZipReaderFile),
		src:  r,
	}
	f := &readAtWrapper{r}

	if info, err := tryReadZip(f); err == nil {
		zr.addCentral(f, info)
		return zr, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := zr.scanLocalHeaders(f); err != nil {
		return nil, err
	}
	return zr, nil
}

func (zr *ZipReader) addCentral(f *readAtWrapper, info *zip.Reader) {
	for _, ze := range info.File {
		if ze.Method != zip.Store && ze.Method != zip.Deflate {
			if storedEntries[ze.Name] {
				ze.Method = zip.Store
				ze.CompressedSize64 = ze.UncompressedSize64
			} else {
				ze.Method = zip.Deflate
			}
		}

		name := path.Clean(ze.Name)
		if zr.File[name] != nil {
			continue
		}
		zf := &ZipReaderFile{
			Name:     name,
			IsDir:    ze.FileInfo().IsDir(),
			src:      f,
			zipEntry: ze,
		}
		zr.File[name] = zf
		zr.FilesOrdered = append(zr.FilesOrdered, zf)
	}
}

// scanLocalHeaders registers every local file header found in f. Later
// entries of the same name take precedence.
func (zr *ZipReader) scanLocalHeaders(f *readAtWrapper) error {
	hdr := make([]byte, localHeaderSize)
	for {
		off, err := findNextFileHeader(f)
		if off == -1 || err != nil {
			return err
		}

		if _, err := f.ReadAt(hdr, off); err != nil {
			return errors.Wrapf(err, "truncated local header at 0x%x", off)
		}
		method := binary.LittleEndian.Uint16(hdr[localHeaderMethod:])
		nameLen := int64(binary.LittleEndian.Uint16(hdr[localHeaderName:]))
		extraLen := int64(binary.LittleEndian.Uint16(hdr[localHeaderName+2:]))

		rawName := make([]byte, nameLen)
		if _, err := f.ReadAt(rawName, off+localHeaderSize); err != nil {
			return errors.Wrapf(err, "truncated file name at 0x%x", off)
		}

		name := path.Clean(string(rawName))
		zf := zr.File[name]
		if zf == nil {
			zf = &ZipReaderFile{
				Name:     name,
				src:      f,
				curEntry: -1,
			}
			zr.File[name] = zf
		}
		zr.FilesOrdered = append(zr.FilesOrdered, zf)

		entry := localEntry{offset: off + localHeaderSize + nameLen + extraLen, method: method}
		zf.entries = append([]localEntry{entry}, zf.entries...)

		if _, err := f.Seek(off+int64(len(localHeaderMagic)), io.SeekStart); err != nil {
			return err
		}
	}
}

func tryReadZip(f *readAtWrapper) (r *zip.Reader, err error) {
	defer func() {
		if pn := recover(); pn != nil {
			err = errors.Errorf("%v", pn)
			r = nil
		}
	}()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	r, err = zip.NewReader(f, size)
	if err != nil {
		return nil, err
	}
	r.RegisterDecompressor(zip.Deflate, newFlateReader)
	return r, nil
}

// findNextFileHeader returns the offset of the next local header magic at
// or after the current position, or -1. The position is left unchanged.
func findNextFileHeader(f io.ReadSeeker) (offset int64, err error) {
	start, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1, err
	}
	defer func() {
		if _, serr := f.Seek(start, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()

	buf := make([]byte, 64*1024)
	matched := 0
	offset = start
	for {
		n, rerr := f.Read(buf)
		if rerr != nil && rerr != io.EOF {
			return -1, rerr
		}
		if n == 0 {
			return -1, nil
		}

		for i := 0; i < n; i++ {
			if buf[i] != localHeaderMagic[matched] {
				matched = 0
				if buf[i] != localHeaderMagic[0] {
					continue
				}
			}
			matched++
			if matched == len(localHeaderMagic) {
				return offset + int64(i) - int64(len(localHeaderMagic)-1), nil
			}
		}
		offset += int64(n)
	}
}

var flateReaderPool sync.Pool

func newFlateReader(r io.Reader) io.ReadCloser {
	fr, ok := flateReaderPool.Get().(io.ReadCloser)
	if ok {
		fr.(flate.Resetter).Reset(r, nil)
	} else {
		fr = flate.NewReader(r)
	}
	return &pooledFlateReader{fr: fr}
}

type pooledFlateReader struct {
	mu sync.Mutex // guards Close and Read
	fr io.ReadCloser
}

func (r *pooledFlateReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fr == nil {
		return 0, errors.New("read after close")
	}
	return r.fr.Read(p)
}

func (r *pooledFlateReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.fr != nil {
		err = r.fr.Close()
		flateReaderPool.Put(r.fr)
		r.fr = nil
	}
	return err
}
