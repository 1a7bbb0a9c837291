package main

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/avast/apkres"
	"github.com/avast/apkres/arsc"
	"github.com/avast/apkres/axml"
	"github.com/avast/apkres/res"
)

type (
	Args struct {
		Xml     *XmlCmd     `arg:"subcommand:xml" help:"render a binary XML file or an APK's manifest"`
		Values  *ValuesCmd  `arg:"subcommand:values" help:"write the values XML files of a resource table"`
		Summary *SummaryCmd `arg:"subcommand:summary" help:"print the packages and types of a resource table"`

		Config     string `help:"YAML options file" placeholder:"FILE"`
		KeepBroken bool   `arg:"--keep-broken" help:"keep invalid configs and duplicate resources"`
		Verbose    bool   `arg:"-v" help:"log tolerated anomalies to stderr"`
	}
	XmlCmd struct {
		Input     string `arg:"positional,required" placeholder:"INPUT"`
		Resources string `arg:"--res" help:"resources.arsc used to resolve references" placeholder:"FILE"`
		Attrs     string `help:"JSON map of attribute ids to names" placeholder:"FILE"`
	}
	ValuesCmd struct {
		Input string `arg:"positional,required" placeholder:"INPUT"`
		Out   string `arg:"required" help:"output directory" placeholder:"DIR"`
	}
	SummaryCmd struct {
		Input string `arg:"positional,required" placeholder:"INPUT"`
	}
)

func (Args) Description() string {
	return "Decodes resources.arsc and binary XML documents of Android APKs.\n"
}

func main() {
	var args Args
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	cfg, err := loadConfig(args.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.apply(&args)

	switch {
	case args.Xml != nil:
		err = runXml(args.Xml, cfg)
	case args.Values != nil:
		err = runValues(args.Values, cfg)
	case args.Summary != nil:
		err = runSummary(args.Summary, cfg, os.Stdout)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

// loadTable decodes a bare resources.arsc or the one inside an APK.
func loadTable(path string, opts apkres.Options) (*res.Table, *arsc.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if !isZip(data) {
		return apkres.DecodeTable(data, opts)
	}

	zr, err := apkres.OpenZipReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	defer zr.Close()
	return apkres.LoadResources(zr, opts)
}

func newXmlEncoder(w io.Writer) *xml.Encoder {
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	return enc
}

func runXml(cmd *XmlCmd, cfg *config) error {
	opts := cfg.options()

	attrs, err := loadAttrNames(cmd.Attrs)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.Input)
	if err != nil {
		return err
	}

	enc := newXmlEncoder(os.Stdout)
	defer fmt.Println()

	if isZip(data) && cmd.Resources == "" && len(attrs) == 0 {
		zr, err := apkres.OpenZipReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		defer zr.Close()

		resErr, manErr := apkres.ParseApkWithZip(zr, enc, opts)
		if resErr != nil {
			opts.Logger.Printf("Failed to parse resources: %v", resErr)
		}
		return manErr
	}

	var decoder axml.AttrDecoder
	if isZip(data) {
		zr, err := apkres.OpenZipReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		defer zr.Close()

		if data, err = zr.ReadFile("AndroidManifest.xml", cfg.maxFileSize()); err != nil {
			return err
		}
		if cmd.Resources == "" {
			if table, _, err := apkres.LoadResources(zr, opts); err == nil {
				decoder = res.NewAttrDecoder(table)
			} else {
				opts.Logger.Printf("Failed to parse resources: %v", err)
			}
		}
	}
	if cmd.Resources != "" {
		table, _, err := loadTable(cmd.Resources, opts)
		if err != nil {
			return err
		}
		decoder = res.NewAttrDecoder(table)
	}
	if len(attrs) > 0 {
		decoder = &namedAttrDecoder{AttrDecoder: decoder, names: attrs}
	}
	return apkres.ParseXml(data, enc, decoder)
}

func runValues(cmd *ValuesCmd, cfg *config) error {
	_, result, err := loadTable(cmd.Input, cfg.options())
	if err != nil {
		return err
	}

	for _, pkg := range result.Packages {
		dir := cmd.Out
		if len(result.Packages) > 1 {
			dir = filepath.Join(cmd.Out, pkg.Name())
		}

		for _, f := range res.GroupValuesFiles(pkg) {
			err := writeFile(filepath.Join(dir, filepath.FromSlash(f.Path())), func(w io.Writer) error {
				return res.SerializeValuesFile(w, f)
			})
			if err != nil {
				return err
			}
		}

		err := writeFile(filepath.Join(dir, "values", "public.xml"), func(w io.Writer) error {
			return res.SerializePublicXML(w, pkg)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return f.Close()
}

func runSummary(cmd *SummaryCmd, cfg *config, w io.Writer) error {
	table, result, err := loadTable(cmd.Input, cfg.options())
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(buildSummary(table, result))
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func newLogger(verbose bool) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "apkres: ", 0)
}
