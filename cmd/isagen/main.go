// Command isagen drives the tablegen/isa/bytetrie/bitfield pipeline end
// to end: it parses a TableGen record dump, filters it into an ISA
// descriptor, compiles the byte-trie decoder, and writes a generated Go
// source file built on package emit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/davecgh/go-spew/spew"

	"github.com/tablegen-tools/isagen/bytetrie"
	"github.com/tablegen-tools/isagen/emit"
	"github.com/tablegen-tools/isagen/isa"
	"github.com/tablegen-tools/isagen/tablegen"
	"github.com/tablegen-tools/isagen/token"
)

type Command struct {
	Name        string
	Description string
	Func        func(ctx context.Context, w io.Writer, args []string) error
}

var (
	commandsNames = make([]string, 0, 4)
	commandsMap   = make(map[string]*Command)

	program = filepath.Base(os.Args[0])
)

func RegisterCommand(name, description string, fun func(ctx context.Context, w io.Writer, args []string) error) {
	if commandsMap[name] != nil {
		panic("command " + name + " already registered")
	}
	commandsNames = append(commandsNames, name)
	commandsMap[name] = &Command{Name: name, Description: description, Func: fun}
}

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	log.SetPrefix("")

	RegisterCommand("generate", "Parse a TableGen dump and emit decoded instruction types", generateMain)
}

func main() {
	sort.Strings(commandsNames)

	var help bool
	flag.BoolVar(&help, "h", false, "Show this message and exit.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage\n  %s COMMAND [OPTIONS]\n\n", program)
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, name := range commandsNames {
			fmt.Fprintf(os.Stderr, "  %-10s  %s\n", name, commandsMap[name].Description)
		}
		os.Exit(2)
	}
	flag.Parse()

	args := flag.Args()
	if help || len(args) == 0 {
		flag.Usage()
	}

	name := args[0]
	cmd, ok := commandsMap[name]
	if !ok {
		flag.Usage()
	}

	log.SetPrefix(name + ": ")
	if err := cmd.Func(context.Background(), os.Stdout, args[1:]); err != nil {
		log.Fatal(err)
	}
}

func generateMain(_ context.Context, _ io.Writer, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	config := fs.String("config", "", "Path to the YAML ISA configuration")
	pkg := fs.String("pkg", "isagen_out", "Go package name for the generated file")
	out := fs.String("out", "", "Output path for the generated Go source (default: stdout)")
	depOut := fs.String("dep-out", "", "Optional path for a .d-style dependency file")
	skipAmbiguous := fs.Bool("skip-ambiguous", false, "Drop ambiguous instructions instead of aborting")
	dump := fs.Bool("dump", false, "Dump the parsed ISA descriptor to stderr and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("generate: expected exactly one TableGen dump argument")
	}
	inputPath := fs.Arg(0)

	if *config == "" {
		return fmt.Errorf("generate: -config is required")
	}
	cfgFile, err := os.Open(*config)
	if err != nil {
		return err
	}
	defer cfgFile.Close()

	doc, err := isa.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	cfg, err := isa.NewConfig(doc)
	if err != nil {
		return err
	}
	if err := isa.CheckEndianAdapter(cfg.EndianAdapter, cfg.InsnWidthBits); err != nil {
		return err
	}

	src, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	fset := token.NewFileSet()
	recs, err := tablegen.Parse(fset, inputPath, src)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	desc := isa.BuildDescriptor(recs, cfg)
	for _, e := range desc.Errors {
		log.Printf("warning: %v", e)
	}

	if *dump {
		spew.Fdump(os.Stderr, desc)
		return nil
	}

	entries := make([]bytetrie.Entry, 0, len(desc.NonPseudoInstructions()))
	for _, inst := range desc.NonPseudoInstructions() {
		entries = append(entries, bytetrie.Entry{
			Tag:          inst.Mnemonic,
			RequiredMask: inst.Mask.RequiredMask(),
			ValueMask:    inst.Mask.ValueMask(),
			Payload:      inst.Mnemonic,
		})
	}

	trie, err := bytetrie.Build(entries)
	for err != nil {
		ambig, ok := err.(*bytetrie.AmbiguityError)
		if !ok || !*skipAmbiguous {
			return fmt.Errorf("generate: building decoder: %w", err)
		}
		log.Printf("warning: %v (dropping them with -skip-ambiguous)", ambig)
		drop := make(map[string]bool, len(ambig.Conflicts))
		for _, tag := range ambig.Conflicts {
			drop[tag] = true
		}
		kept := entries[:0]
		for _, e := range entries {
			if !drop[e.Tag] {
				kept = append(kept, e)
			}
		}
		entries = kept
		trie, err = bytetrie.Build(entries)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := emit.Generate(w, *pkg, desc, trie, cfg.OperandPayloadTypes); err != nil {
		return err
	}

	if *depOut != "" && *out != "" {
		df, err := os.Create(*depOut)
		if err != nil {
			return err
		}
		defer df.Close()
		if err := emit.WriteDepFile(df, *out, []string{inputPath, *config}); err != nil {
			return err
		}
	}

	return nil
}
