package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nivasm/vasm/assembler"
	"github.com/nivasm/vasm/config"
	"github.com/nivasm/vasm/target"

	_ "github.com/nivasm/vasm/target/mos6502" // registers the 6502-family back-ends
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// multiFlag collects repeated -D occurrences into an ordered list.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	var (
		caseInsensitive = flag.Bool("C", false, "case-insensitive symbol lookup")
		toggleAutofill  = flag.Bool("F", false, "toggle autofill-on-origin-change (default on)")
		printerMode     = flag.Bool("P", false, "printer mode (sets listing width to 132; no printer escapes are emitted)")
		cpuName         = flag.String("p", "", "set target CPU")
		listFile        = flag.String("l", "", "write listing to file (name used as given; no .lst extension is added)")
		outFile         = flag.String("o", "", "write object to file")
		dumpSyms        = flag.Bool("s", false, "dump symbol table")
		quiet           = flag.Bool("q", false, "suppress banner")
		verbose         = flag.Bool("v", false, "increase verbosity")
		debugDump       = flag.Bool("d", false, "enable debug diagnostics")
		listTargets     = flag.Bool("T", false, "list supported targets")
		showVersion     = flag.Bool("V", false, "print version and exit")
		includeDirs     multiFlag
		defines         multiFlag
	)
	flag.Var(&includeDirs, "I", "add a directory to the include search path (repeatable)")
	flag.Var(&defines, "D", "pre-define a variable (value defaults to BYTE 1); sym[=val]")

	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("vasm %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *listTargets {
		names := target.Registered()
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vasm: %v\n", err)
		os.Exit(1)
	}
	if *caseInsensitive {
		cfg.Assembly.CaseSensitive = false
	}
	if *toggleAutofill {
		cfg.Assembly.Autofill = !cfg.Assembly.Autofill
	}
	if *printerMode {
		cfg.Listing.PageWidth = 132
	}
	if *quiet {
		cfg.Diagnostics.Quiet = true
	}
	if *verbose {
		cfg.Diagnostics.Verbose = true
	}
	cfg.Diagnostics.Verbose = cfg.Diagnostics.Verbose || *debugDump

	if !cfg.Diagnostics.Quiet {
		fmt.Printf("vasm %s\n", Version)
	}

	mainFile := flag.Arg(0)
	outName := *outFile
	if outName == "" {
		outName = defaultObjectName(mainFile, cfg.Output.DefaultFormat)
	}

	opts := assembler.Options{
		MainFile:    mainFile,
		IncludeDirs: includeDirs,
		Defines:     parseDefines(defines),
		CPU:         *cpuName,
		OutputFile:  outName,
		ListingFile: *listFile,
		Cfg:         cfg,
	}

	a := assembler.New(cfg)
	res := a.Run(opts)

	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, w.String())
	}
	for _, e := range res.Errors {
		fmt.Fprintln(os.Stderr, e.Error())
	}

	if cfg.Diagnostics.Verbose {
		fmt.Printf("bytes emitted: %d\n", res.BytesEmitted)
	}

	if *dumpSyms {
		dumpSymbolTable(res)
	}

	if !res.OK() {
		os.Exit(1)
	}
}

// defaultObjectName derives an output filename from the source name when
// -o wasn't given, honoring the configured default format's extension.
func defaultObjectName(mainFile, format string) string {
	base := strings.TrimSuffix(mainFile, filepath.Ext(mainFile))
	switch strings.ToLower(format) {
	case "ihex", "hex":
		return base + ".hex"
	case "srec", "s19":
		return base + ".srec"
	default:
		return base + ".bin"
	}
}

// parseDefines turns "-D sym" / "-D sym=val" flag occurrences into the map
// Options.Defines expects.
func parseDefines(defs multiFlag) map[string]string {
	out := map[string]string{}
	for _, d := range defs {
		if i := strings.IndexByte(d, '='); i >= 0 {
			out[d[:i]] = d[i+1:]
		} else {
			out[d] = ""
		}
	}
	return out
}

func dumpSymbolTable(res *assembler.Result) {
	globals := res.Symbols.Globals()
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-32s %08X\n", name, globals[name].Value.Content)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: vasm [-dCFqsPvV] [-p cpu] [-l listfile] [-o outfile] [-D sym[=val]] file ...")
	flag.PrintDefaults()
}
