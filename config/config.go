// Package config holds the settings of one batching run. Settings come from
// command line flags, optionally layered over a JSON file.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/carbocation/contourbatch"
	"github.com/carbocation/contourbatch/mask"
	"github.com/carbocation/contourbatch/preview"
	"github.com/carbocation/pfx"
)

const (
	FillEvenOdd = "evenodd"
	FillNonZero = "nonzero"

	DelimiterAuto = "auto"
)

type JSONConfig struct {
	ConfigPath string `json:"-"`

	LinkFile   string `json:"link_file"`
	DicomDir   string `json:"dicom_dir"`
	ContourDir string `json:"contour_dir"`
	Delimiter  string `json:"delimiter"`

	BatchSize int `json:"batch_size"`

	// Seed 0 seeds from the clock.
	Seed int64 `json:"seed"`

	Concurrency      int    `json:"concurrency"`
	SkipInvalid      bool   `json:"skip_invalid"`
	StrictDimensions bool   `json:"strict_dimensions"`
	FillRule         string `json:"fill_rule"`

	SummaryPath   string `json:"summary"`
	PreviewDir    string `json:"preview_dir"`
	PreviewScale  int    `json:"preview_scale"`
	PreviewFormat string `json:"preview_format"`

	// #RRGGBB or #RRGGBBAA
	MaskColor    string `json:"mask_color"`
	ContourColor string `json:"contour_color"`
}

// Default matches the layout of the final_data directory, processed in
// batches of 8.
func Default() JSONConfig {
	return JSONConfig{
		LinkFile:      "final_data/link.csv",
		DicomDir:      "final_data/dicoms/",
		ContourDir:    "final_data/contourfiles/",
		Delimiter:     ",",
		BatchSize:     8,
		Concurrency:   1,
		FillRule:      FillEvenOdd,
		PreviewScale:  1,
		PreviewFormat: preview.FormatPNG,
		MaskColor:     "#ff000080",
		ContourColor:  "#ffff00",
	}
}

// ParseJSONConfigFromPath reads a JSON config. Fields missing from the file
// keep their Default values.
func ParseJSONConfigFromPath(path string) (JSONConfig, error) {
	out := Default()
	out.ConfigPath = path

	f, err := os.Open(contourbatch.ExpandHome(path))
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
		}
		return out, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	out.ExpandPaths()

	return out, nil
}

// ExpandPaths interprets a leading ~ in every path setting.
func (c *JSONConfig) ExpandPaths() {
	c.LinkFile = contourbatch.ExpandHome(c.LinkFile)
	c.DicomDir = contourbatch.ExpandHome(c.DicomDir)
	c.ContourDir = contourbatch.ExpandHome(c.ContourDir)
	c.SummaryPath = contourbatch.ExpandHome(c.SummaryPath)
	c.PreviewDir = contourbatch.ExpandHome(c.PreviewDir)
}

func (c JSONConfig) Validate() error {
	if c.LinkFile == "" || c.DicomDir == "" || c.ContourDir == "" {
		return fmt.Errorf("link file, dicom directory and contour directory are all required")
	}
	for name, p := range map[string]string{"summary": c.SummaryPath, "preview directory": c.PreviewDir} {
		if contourbatch.IsGoogleStoragePath(p) {
			return fmt.Errorf("%s %s: outputs are written to the local disk and cannot be gs:// paths", name, p)
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	if _, err := c.Rule(); err != nil {
		return err
	}
	if c.PreviewFormat != preview.FormatPNG && c.PreviewFormat != preview.FormatBMP {
		return fmt.Errorf("preview format must be %s or %s, got %q", preview.FormatPNG, preview.FormatBMP, c.PreviewFormat)
	}
	if _, err := c.PreviewOptions(); err != nil {
		return err
	}

	return nil
}

// DelimiterRune returns 0 for "auto", meaning the delimiter should be
// detected from the manifest.
func (c JSONConfig) DelimiterRune() (rune, error) {
	switch c.Delimiter {
	case DelimiterAuto:
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}

	runes := []rune(c.Delimiter)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character or %q, got %q", DelimiterAuto, c.Delimiter)
	}

	return runes[0], nil
}

func (c JSONConfig) Rule() (mask.FillRule, error) {
	switch c.FillRule {
	case FillEvenOdd, "":
		return mask.EvenOdd, nil
	case FillNonZero:
		return mask.NonZero, nil
	}

	return mask.EvenOdd, fmt.Errorf("fill rule must be %s or %s, got %q", FillEvenOdd, FillNonZero, c.FillRule)
}

// PreviewOptions converts the preview settings for the preview package.
func (c JSONConfig) PreviewOptions() (preview.Options, error) {
	opts := preview.DefaultOptions()
	opts.Scale = c.PreviewScale

	var err error
	if c.MaskColor != "" {
		if opts.MaskColor, err = preview.ParseColor(c.MaskColor); err != nil {
			return opts, err
		}
	}
	if c.ContourColor != "" {
		if opts.ContourColor, err = preview.ParseColor(c.ContourColor); err != nil {
			return opts, err
		}
	}

	return opts, nil
}

// RegisterFlags binds one flag per setting to c, using c's current values as
// the defaults.
func RegisterFlags(fs *flag.FlagSet, c *JSONConfig) {
	fs.StringVar(&c.LinkFile, "link", c.LinkFile, "Manifest linking patient_id to the contour set id, one patient per row. May be a gs:// path.")
	fs.StringVar(&c.DicomDir, "dicoms", c.DicomDir, "Folder holding one subfolder of <contour id>.dcm files per patient. May be a gs:// path.")
	fs.StringVar(&c.ContourDir, "contours", c.ContourDir, "Folder holding <contour set id>/i-contours/ folders. May be a gs:// path.")
	fs.StringVar(&c.Delimiter, "delimiter", c.Delimiter, "Field delimiter of the manifest. Use 'auto' to detect it, or '\\t' for tab.")
	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "Number of image/mask pairs per batch.")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Seed for the shuffle. 0 seeds from the clock.")
	fs.IntVar(&c.Concurrency, "concurrency", c.Concurrency, "Number of patients to assemble at once.")
	fs.BoolVar(&c.SkipInvalid, "skip-invalid", c.SkipInvalid, "Skip contours whose DICOM cannot be decoded, instead of failing.")
	fs.BoolVar(&c.StrictDimensions, "strict-dims", c.StrictDimensions, "Fail if a patient's images differ in shape, instead of reusing the first image's shape.")
	fs.StringVar(&c.FillRule, "fill-rule", c.FillRule, "Polygon fill rule: evenodd or nonzero.")
	fs.StringVar(&c.SummaryPath, "summary", c.SummaryPath, "(Optional) Local path to write a CSV with one row per case describing its batch.")
	fs.StringVar(&c.PreviewDir, "preview-dir", c.PreviewDir, "(Optional) Local folder in which to draw each case's image, mask and contour.")
	fs.IntVar(&c.PreviewScale, "preview-scale", c.PreviewScale, "Integer upscale factor for previews.")
	fs.StringVar(&c.PreviewFormat, "preview-format", c.PreviewFormat, "Preview image format: png or bmp.")
	fs.StringVar(&c.MaskColor, "mask-color", c.MaskColor, "Preview tint for mask pixels, as #RRGGBB or #RRGGBBAA.")
	fs.StringVar(&c.ContourColor, "contour-color", c.ContourColor, "Preview color of the contour outline, as #RRGGBB or #RRGGBBAA.")
}

// Overlay copies onto base the settings whose flags were set explicitly on
// fs, taking their values from flagged (the struct given to RegisterFlags).
func Overlay(base JSONConfig, fs *flag.FlagSet, flagged JSONConfig) JSONConfig {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "link":
			base.LinkFile = flagged.LinkFile
		case "dicoms":
			base.DicomDir = flagged.DicomDir
		case "contours":
			base.ContourDir = flagged.ContourDir
		case "delimiter":
			base.Delimiter = flagged.Delimiter
		case "batch-size":
			base.BatchSize = flagged.BatchSize
		case "seed":
			base.Seed = flagged.Seed
		case "concurrency":
			base.Concurrency = flagged.Concurrency
		case "skip-invalid":
			base.SkipInvalid = flagged.SkipInvalid
		case "strict-dims":
			base.StrictDimensions = flagged.StrictDimensions
		case "fill-rule":
			base.FillRule = flagged.FillRule
		case "summary":
			base.SummaryPath = flagged.SummaryPath
		case "preview-dir":
			base.PreviewDir = flagged.PreviewDir
		case "preview-scale":
			base.PreviewScale = flagged.PreviewScale
		case "preview-format":
			base.PreviewFormat = flagged.PreviewFormat
		case "mask-color":
			base.MaskColor = flagged.MaskColor
		case "contour-color":
			base.ContourColor = flagged.ContourColor
		}
	})

	base.ExpandPaths()

	return base
}
