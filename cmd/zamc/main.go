// zamc compiles the functions of a Go source file to ZAM bodies and prints
// a summary of each, optionally with the full instruction listings.
//
// Usage:
//
//	zamc [-dump] [-no-opt] [-v] file.go
//
// ZAM_NO_OPT and ZAM_DUMP_CODE in the environment set the corresponding
// defaults.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"
	"github.com/mileusna/conditional"

	"github.com/sowmyaramapatruni/zeek/compiler"
)

func main() {
	opts := compiler.OptionsFromEnv()
	dump := flag.Bool("dump", opts.DumpCode, "dump instruction listings per function")
	noOpt := flag.Bool("no-opt", opts.NoZAMOpt, "disable optimization")
	verbose := flag.Bool("v", false, "dump the assembled bodies in full")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: zamc [-dump] [-no-opt] [-v] file.go\n")
		os.Exit(1)
	}
	opts.DumpCode = *dump
	opts.NoZAMOpt = *noOpt

	inputFile := flag.Arg(0)
	src, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zamc: %v\n", err)
		os.Exit(1)
	}

	rep := compiler.NewDiagReporter()
	bodies, err := compiler.CompileGoFile(inputFile, src, opts, rep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zamc: %v\n", err)
		os.Exit(1)
	}

	for _, msg := range rep.Messages() {
		fmt.Fprintf(os.Stderr, "%s %s\n", aurora.Red("error:"), msg)
	}
	for _, msg := range rep.InternalErrors() {
		fmt.Fprintf(os.Stderr, "%s %s\n", aurora.Red("internal error:"), msg)
	}

	var names []string
	for name := range bodies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		body := bodies[name]
		fmt.Printf("%s: %d instructions, %d frame slots, %d globals\n",
			aurora.Bold(name), len(body.Insts()), len(body.Frame()), len(body.Globals()))
		if *verbose {
			spew.Dump(body)
		}
	}

	fmt.Printf("zamc: %s → %d %s\n", inputFile, len(bodies),
		conditional.String(len(bodies) == 1, "function", "functions"))

	if rep.Errors() > 0 {
		os.Exit(1)
	}
}
