package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/michaelmcallister/photobooth/capture"
	"github.com/michaelmcallister/photobooth/capture/gocvsource"
	"github.com/michaelmcallister/photobooth/face"
	"github.com/michaelmcallister/photobooth/layout"
	"github.com/michaelmcallister/photobooth/mask"
	"github.com/michaelmcallister/photobooth/session"
)

const usage = `Usage: photobooth [shoot|compose] [OPTION]`

const dateFormatFile = "2006-01-02--15-04-05"

// 'shoot' flags.
const shootCmdName = "shoot"

var (
	shootCmd      = flag.NewFlagSet(shootCmdName, flag.ExitOnError)
	deviceID      = shootCmd.Int("device", 0, "0 based index of the capture device to use.")
	shootLayout   = shootCmd.String("layout", "strip4", "layout kind: single, strip3, strip4, grid.")
	filterExpr    = shootCmd.String("filter", "none", "filter expression, e.g. 'grayscale(1) contrast(1.1)'.")
	maskKind      = shootCmd.String("mask", "none", "overlay mask: none, hearts, stars.")
	title         = shootCmd.String("title", "photobooth", "strip title drawn in the footer.")
	frameColor    = shootCmd.String("framecolor", "#ffffff", "frame color as #rrggbb.")
	countdown     = shootCmd.Duration("countdown", 3*time.Second, "countdown before each shot.")
	sampling      = shootCmd.Duration("interval", 100*time.Millisecond, "video sampling interval; 0 disables video.")
	shootPath     = shootCmd.String("filepath", ".", "directory to store resultant files.")
	warmUpRetries = shootCmd.Int("warmup", 30, "frames to read while waiting for the device to become ready.")
)

// 'compose' flags.
const composeCmdName = "compose"

var (
	composeCmd    = flag.NewFlagSet(composeCmdName, flag.ExitOnError)
	composeDir    = composeCmd.String("directory", "./", "directory of stills to compose, in filename order.")
	composeLayout = composeCmd.String("layout", "strip3", "layout kind: single, strip3, strip4, grid.")
	composeTitle  = composeCmd.String("title", "photobooth", "strip title drawn in the footer.")
	composeColor  = composeCmd.String("framecolor", "#ffffff", "frame color as #rrggbb.")
	composeOut    = composeCmd.String("filename", "strip.png", "output file for the composed strip.")
)

func init() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	switch os.Args[1] {
	case shootCmdName:
		shootCmd.Parse(os.Args[2:])
	case composeCmdName:
		composeCmd.Parse(os.Args[2:])
	default:
		fmt.Println("expected one of `shoot`, `compose`")
		os.Exit(1)
	}
}

func main() {
	if shootCmd.Parsed() {
		if err := runShoot(); err != nil {
			log.Fatal(err)
		}
	}
	if composeCmd.Parsed() {
		if err := runCompose(); err != nil {
			log.Fatal(err)
		}
	}
}

func runShoot() error {
	kind, err := layout.ParseKind(*shootLayout)
	if err != nil {
		return err
	}
	mk, err := mask.ParseKind(*maskKind)
	if err != nil {
		return err
	}
	fc, err := parseHexColor(*frameColor)
	if err != nil {
		return err
	}

	src, err := gocvsource.New(*deviceID)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := src.WarmUp(*warmUpRetries); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stamp := time.Now().Format(dateFormatFile)
	cfg := session.Config{
		Layout:           layout.Spec{Kind: kind, FrameColor: fc, Title: *title},
		Effect:           capture.Config{Filter: *filterExpr, Mask: mk, Format: capture.PNG},
		Countdown:        *countdown,
		SamplingInterval: *sampling,
	}
	if *sampling > 0 {
		cfg.VideoPath = filepath.Join(*shootPath, stamp)
	}

	// No detector wired on the CLI; masks fall back to the default anchor.
	s := session.New(cfg, src, face.NewPoller(nil, *sampling))
	out, err := s.Run(ctx)
	if err != nil {
		return err
	}

	for i, still := range out.Stills {
		b, err := still.Encode(cfg.Effect.Format, cfg.Effect.Quality)
		if err != nil {
			return err
		}
		file := filepath.Join(*shootPath, fmt.Sprintf("%s-shot%d.png", stamp, i+1))
		if err := os.WriteFile(file, b, 0o644); err != nil {
			return err
		}
	}

	b, err := out.Photo.EncodePNG()
	if err != nil {
		return err
	}
	photoFile := filepath.Join(*shootPath, fmt.Sprintf("%s.png", stamp))
	if err := os.WriteFile(photoFile, b, 0o644); err != nil {
		return err
	}
	log.WithField("file", photoFile).Info("saved photo strip")
	if out.Video != nil {
		log.WithField("file", out.Video.Path).Info("saved video strip")
	}
	return nil
}

func runCompose() error {
	kind, err := layout.ParseKind(*composeLayout)
	if err != nil {
		return err
	}
	fc, err := parseHexColor(*composeColor)
	if err != nil {
		return err
	}

	var rasters []image.Image
	entries, err := os.ReadDir(*composeDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".png") && !strings.HasSuffix(name, ".jpg") {
			continue
		}
		f, err := os.Open(filepath.Join(*composeDir, e.Name()))
		if err != nil {
			return err
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return err
		}
		rasters = append(rasters, img)
	}

	c, err := layout.Compose(rasters, layout.Spec{Kind: kind, FrameColor: fc, Title: *composeTitle})
	if err != nil {
		return err
	}
	b, err := c.EncodePNG()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*composeOut, b, 0o644); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"file":   *composeOut,
		"width":  c.Width,
		"height": c.Height,
	}).Info("saved composed strip")
	return nil
}

// parseHexColor parses #rrggbb into an opaque RGBA.
func parseHexColor(s string) (color.RGBA, error) {
	var c color.RGBA
	c.A = 0xff
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid frame color %q", s)
	}
	return c, nil
}
