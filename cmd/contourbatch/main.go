// contourbatch pairs DICOM images with the masks rasterized from their i-contour
// annotations, and splits the pairs into randomized batches.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/carbocation/contourbatch"
	"github.com/carbocation/contourbatch/assemble"
	"github.com/carbocation/contourbatch/batch"
	_ "github.com/carbocation/contourbatch/compileinfoprint"
	"github.com/carbocation/contourbatch/config"
	"github.com/carbocation/contourbatch/dicomimage"
	"github.com/carbocation/contourbatch/linkage"
	"github.com/carbocation/contourbatch/preview"
)

func init() {
	flag.Usage = func() {
		flag.PrintDefaults()

		log.Println("Example JSONConfig file layout (explicit flags take precedence):")
		bts, err := json.MarshalIndent(config.Default(), "", "  ")
		if err == nil {
			log.Println(string(bts))
		}
	}
}

func main() {
	start := time.Now()
	log.Println("contourbatch start")
	defer func() {
		log.Printf("contourbatch end. Took %.2f seconds\n", time.Since(start).Seconds())
	}()

	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		flag.Usage()
		log.Fatalln(err)
	}

	if err := run(context.Background(), cfg, os.Stdout, dicomimage.ParseFile); err != nil {
		log.Fatalln(err)
	}
}

// parseConfig reads the flags in args. If -config names a JSON file, its
// values are used except where a flag was set explicitly.
func parseConfig(fs *flag.FlagSet, args []string) (config.JSONConfig, error) {
	var jsonConfig string

	flagged := config.Default()
	fs.StringVar(&jsonConfig, "config", "", "(Optional) JSONConfig file. Flags that are set explicitly override its values.")
	config.RegisterFlags(fs, &flagged)

	if err := fs.Parse(args); err != nil {
		return flagged, err
	}

	cfg := config.Default()
	if jsonConfig != "" {
		var err error
		if cfg, err = config.ParseJSONConfigFromPath(jsonConfig); err != nil {
			return cfg, err
		}
	}

	cfg = config.Overlay(cfg, fs, flagged)

	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.JSONConfig, w io.Writer, decode assemble.DecodeFunc) error {
	delimiter, err := cfg.DelimiterRune()
	if err != nil {
		return err
	}
	rule, err := cfg.Rule()
	if err != nil {
		return err
	}

	src, err := contourbatch.NewFileSource(ctx, cfg.LinkFile, cfg.DicomDir, cfg.ContourDir)
	if err != nil {
		return err
	}
	defer src.Close()

	link, err := linkage.ReadFile(src, cfg.LinkFile, delimiter)
	if err != nil {
		return err
	}
	log.Printf("Read %d patients from %s\n", link.NumPatients(), cfg.LinkFile)

	asm := assemble.New(src, assemble.Layout{DicomRoot: cfg.DicomDir, ContourRoot: cfg.ContourDir}, link, assemble.Options{
		SkipInvalid:      cfg.SkipInvalid,
		StrictDimensions: cfg.StrictDimensions,
		Concurrency:      cfg.Concurrency,
		FillRule:         rule,
	})
	if decode != nil {
		asm.Decode = decode
	}

	cases, err := asm.All(ctx)
	if err != nil {
		return err
	}
	log.Printf("Assembled %d cases\n", len(cases))

	batches, err := batch.Split(cases, cfg.BatchSize, batch.NewRand(cfg.Seed))
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "The data has been split into batches of dicom images and boolean masks:")
	fmt.Fprint(w, batch.Describe(batches))

	log.Printf("Pixel intensity: %s\n", batch.Norms(batches))
	log.Println("Fraction of each image covered by its mask:")
	if err := batch.FprintMaskHistogram(log.Writer(), batches, 10); err != nil {
		return err
	}

	if cfg.SummaryPath != "" {
		if err := writeSummary(cfg.SummaryPath, batches); err != nil {
			return err
		}
		log.Printf("Wrote batch summary to %s\n", cfg.SummaryPath)
	}

	if cfg.PreviewDir != "" {
		if err := writePreviews(cfg, cases); err != nil {
			return err
		}
		log.Printf("Wrote %d previews to %s\n", len(cases), cfg.PreviewDir)
	}

	fmt.Fprintln(w, "All done!")

	return nil
}

func writeSummary(path string, batches []batch.Batch) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := batch.WriteSummary(f, batches); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func writePreviews(cfg config.JSONConfig, cases []assemble.Case) error {
	if err := os.MkdirAll(cfg.PreviewDir, 0755); err != nil {
		return err
	}

	opts, err := cfg.PreviewOptions()
	if err != nil {
		return err
	}

	for i, c := range cases {
		if _, err := preview.WriteCase(cfg.PreviewDir, c, opts, cfg.PreviewFormat); err != nil {
			return fmt.Errorf("%s: %w", c.Label, err)
		}

		if (i+1)%100 == 0 {
			log.Printf("Drew %d previews\n", i+1)
		}
	}

	return nil
}
