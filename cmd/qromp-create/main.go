// Command qromp-create creates a BPS or IPS patch from the differences
// between two files.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/qalle2/qromp"
	"github.com/qalle2/qromp/bps"
	"github.com/qalle2/qromp/ips"
	"github.com/spf13/pflag"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("qromp-create: ")

	verbose := pflag.BoolP("verbose", "v", false, "Print more info.")
	minCopyLen := pflag.IntP("min-copy-len", "c", bps.DefaultMinCopyLen, "BPS: minimum substring length worth copying. 1-32.")
	metadata := pflag.StringP("metadata", "m", "", "BPS: opaque metadata to embed in the patch, ASCII.")
	minRleLen := pflag.IntP("min-rle-len", "r", ips.DefaultMinRleLen, "IPS: minimum run length worth encoding as RLE. 1-16.")
	maxUnchgLen := pflag.IntP("max-unchg-len", "u", ips.DefaultMaxUnchangedLen, "IPS: maximum unchanged gap folded into a record. 0-16.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <orig_file> <modified_file> <patch_file>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 3 {
		pflag.Usage()
		os.Exit(1)
	}
	origFile, modifiedFile, patchFile := pflag.Arg(0), pflag.Arg(1), pflag.Arg(2)

	result, err := qromp.CreateFile(origFile, modifiedFile, patchFile, qromp.CreateOptions{
		BPSMinCopyLen:         *minCopyLen,
		BPSMetadata:           []byte(*metadata),
		IPSMinRleLen:          *minRleLen,
		IPSMaxUnchangedLen:    *maxUnchgLen,
		IPSMaxUnchangedLenSet: true,
	})
	if err != nil {
		log.Fatal(err)
	}

	if *verbose {
		switch {
		case result.Stats.BPS != nil:
			s := result.Stats.BPS
			fmt.Printf(
				"%d/%d/%d/%d bytes in %d/%d/%d/%d blocks of type SourceRead/TargetRead/SourceCopy/TargetCopy\n",
				s.SourceReadBytes, s.TargetReadBytes, s.SourceCopyBytes, s.TargetCopyBytes,
				s.SourceReadBlocks, s.TargetReadBlocks, s.SourceCopyBlocks, s.TargetCopyBlocks,
			)
		case result.Stats.IPS != nil:
			s := result.Stats.IPS
			fmt.Printf(
				"%d/%d bytes in %d/%d records of type literal/RLE\n",
				s.LiteralBytes, s.RLEBytes, s.LiteralRecords, s.RLERecords,
			)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(result.Patch), patchFile)
	}
}
