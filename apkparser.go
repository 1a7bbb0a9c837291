// Package apkres decodes resources.arsc and binary XML documents from
// Android APKs.
package apkres

import (
	"io"
	"log"
	"os"
	"runtime/debug"

	"github.com/pkg/errors"

	"github.com/avast/apkres/arsc"
	"github.com/avast/apkres/axml"
	"github.com/avast/apkres/res"
)

const (
	manifestName  = "AndroidManifest.xml"
	resourcesName = "resources.arsc"

	DefaultMaxFileSize = 64 << 20
)

type Options struct {
	// KeepBroken keeps resources of invalid configurations and lets
	// duplicates overwrite each other.
	KeepBroken bool

	// MaxFileSize caps the bytes read from one archive entry. Zero means
	// DefaultMaxFileSize.
	MaxFileSize int64

	Logger *log.Logger
}

func (o Options) maxFileSize() int64 {
	if o.MaxFileSize > 0 {
		return o.MaxFileSize
	}
	return DefaultMaxFileSize
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard, "", 0)
}

type apkParser struct {
	zip     *ZipReader
	encoder ManifestEncoder
	opts    Options

	table *res.Table
}

// ParseApk renders the APK's manifest into encoder, an encoding/xml Encoder
// or anything alike, with references resolved through resources.arsc.
//
// zipErr != nil means the APK couldn't be opened. The manifest is rendered
// even when resourcesErr != nil, just without the resource table.
func ParseApk(path string, encoder ManifestEncoder, opts Options) (zipErr, resourcesErr, manifestErr error) {
	zip, zipErr := OpenZip(path)
	if zipErr != nil {
		return
	}
	defer zip.Close()

	resourcesErr, manifestErr = ParseApkWithZip(zip, encoder, opts)
	return
}

// ParseApkWithZip is ParseApk over an already opened archive. The archive is
// not closed.
func ParseApkWithZip(zip *ZipReader, encoder ManifestEncoder, opts Options) (resourcesErr, manifestErr error) {
	p := apkParser{
		zip:     zip,
		encoder: encoder,
		opts:    opts,
	}

	resourcesErr = p.parseResources()
	manifestErr = p.parseManifestXml()
	return
}

// LoadResources decodes the archive's resources.arsc. It fails with an error
// wrapping os.ErrNotExist when there is none.
func LoadResources(zip *ZipReader, opts Options) (*res.Table, *arsc.Result, error) {
	data, err := zip.ReadFile(resourcesName, opts.maxFileSize())
	if err != nil {
		return nil, nil, err
	}
	return DecodeTable(data, opts)
}

// DecodeTable decodes a resources.arsc file into a new table. Panics on
// malformed input are returned as errors.
func DecodeTable(data []byte, opts Options) (table *res.Table, result *arsc.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			table, result = nil, nil
			err = errors.Errorf("panic: %v\n%s", r, string(debug.Stack()))
		}
	}()

	table = res.NewTable()
	table.Logger = opts.logger()
	result, err = arsc.Decode(data, table, arsc.Options{
		KeepBroken: opts.KeepBroken,
		Logger:     table.Logger,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to decode resources.arsc")
	}
	return table, result, nil
}

func (p *apkParser) parseResources() error {
	if p.table != nil {
		return nil
	}
	table, _, err := LoadResources(p.zip, p.opts)
	if err != nil {
		return err
	}
	p.table = table
	return nil
}

func (p *apkParser) parseManifestXml() error {
	manifest := p.zip.File[manifestName]
	if manifest == nil {
		return errors.Wrap(os.ErrNotExist, "failed to find AndroidManifest.xml")
	}

	if err := manifest.Open(); err != nil {
		return err
	}
	defer manifest.Close()

	var decoder axml.AttrDecoder
	if p.table != nil {
		decoder = res.NewAttrDecoder(p.table)
	}

	var lastErr error
	for manifest.Next() {
		data, err := io.ReadAll(io.LimitReader(manifest, p.opts.maxFileSize()))
		if err == nil {
			err = parseXml(data, p.encoder, decoder, p.opts.logger())
		}
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if errors.Cause(lastErr) == ErrPlainTextManifest {
		return lastErr
	}
	return errors.Errorf("failed to parse manifest, last error: %v", lastErr)
}
