// Command apngdump renders every frame of an APNG file to individual
// PNG files in an output directory, printing frame timing as it goes.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/apng-go/apng"
)

func main() {
	var (
		outDir    = flag.String("out", "frames", "directory to write decoded frame PNGs into")
		skipCRC   = flag.Bool("skip-checksum-verify", false, "skip CRC-32 verification on every chunk")
		fullFirst = flag.Bool("full-first-pass", false, "assemble every frame's chunk references up front")
		preRender = flag.Bool("pre-render", false, "composite every frame during construction, caching it when caching is enabled")
		unlimited = flag.Bool("unlimited-frame-count", false, "lift the 1024-frame ceiling")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: apngdump [flags] <file.png>")
		os.Exit(2)
	}

	dec, err := apng.NewDecoderFile(flag.Arg(0), apng.Options{
		SkipChecksumVerify: *skipCRC,
		FullFirstPass:      *fullFirst,
		PreRenderAllFrames: *preRender,
		UnlimitedFrameCount: *unlimited,
	})
	if err != nil {
		log.Fatalf("apngdump: open %s: %v", flag.Arg(0), err)
	}
	defer dec.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("apngdump: %v", err)
	}

	log.Printf("apngdump: %d frames, %d plays", dec.FrameCount(), dec.NumPlays())

	for i := 0; i < dec.FrameCount(); i++ {
		// Construction already rendered frame 0; later frames are
		// rendered one at a time.
		img := dec.Output()
		if i > 0 {
			if img, err = dec.RenderNextSync(); err != nil {
				log.Fatalf("apngdump: frame %d: %v", i, err)
			}
		}
		path := filepath.Join(*outDir, fmt.Sprintf("frame-%03d.png", i))
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("apngdump: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			log.Fatalf("apngdump: encode %s: %v", path, err)
		}
		f.Close()
		log.Printf("frame %d: delay=%.3fs -> %s", i, dec.Delay(i), path)
	}
}
