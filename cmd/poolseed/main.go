// Command poolseed reads a list of raw URLs, normalizes and deduplicates
// them, and emits the surviving set as JSON. It is a standalone
// preprocessing utility for building a seed file ahead of a crawl run; it
// does not participate in the crawl's worker loop.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/windrift/crawlcore/internal/crawler"
)

func main() {
	inputPath := flag.String("input", "", "path to a file with one URL per line (default: stdin)")
	maxURLLength := flag.Int("max-url-length", 2048, "reject URLs longer than this once normalized")
	flag.Parse()

	in := os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", *inputPath, err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	seen := crawler.NewExactVisitedSet()
	normCfg := crawler.NormalizeConfig{MaxURLLength: *maxURLLength}

	var kept []string
	var rejected int

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		u, err := crawler.Normalize(nil, line, normCfg)
		if err != nil {
			rejected++
			continue
		}
		if seen.AddIfAbsent(u) {
			kept = append(kept, u.String())
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	out := struct {
		Seeds    []string `json:"seeds"`
		Rejected int      `json:"rejected"`
	}{Seeds: kept, Rejected: rejected}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}
