// Command qromp-apply applies a BPS or IPS patch to a file.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/qalle2/qromp"
	"github.com/spf13/pflag"
)

func parseCRC(s string) (uint32, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false, fmt.Errorf("invalid CRC32 %q: %w", s, err)
	}
	return uint32(n), true, nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("qromp-apply: ")

	verbose := pflag.BoolP("verbose", "v", false, "Print more info.")
	inputCRC := pflag.StringP("input-crc", "i", "", "Expected CRC32 (hex) of the original file. IPS only.")
	outputCRC := pflag.StringP("output-crc", "o", "", "Expected CRC32 (hex) of the output file. IPS only.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <orig_file> <patch_file> <output_file>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 3 {
		pflag.Usage()
		os.Exit(1)
	}
	origFile, patchFile, outputFile := pflag.Arg(0), pflag.Arg(1), pflag.Arg(2)

	inCRC, hasInCRC, err := parseCRC(*inputCRC)
	if err != nil {
		log.Fatal(err)
	}
	outCRC, hasOutCRC, err := parseCRC(*outputCRC)
	if err != nil {
		log.Fatal(err)
	}

	result, err := qromp.ApplyFile(origFile, patchFile, outputFile, qromp.ApplyOptions{
		HasInputCRC32:  hasInCRC,
		InputCRC32:     inCRC,
		HasOutputCRC32: hasOutCRC,
		OutputCRC32:    outCRC,
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if *verbose {
		fmt.Printf("wrote %d bytes to %s\n", len(result.Target), outputFile)
	}
}
