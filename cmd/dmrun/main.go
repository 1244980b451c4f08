// dmrun - loads a compiled program and runs a proc against a fresh world.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/distributivgesetz/opendream/config"
	"github.com/distributivgesetz/opendream/store"
	"github.com/distributivgesetz/opendream/vm"
	"github.com/distributivgesetz/opendream/wire"
)

func main() {
	configDir := flag.String("c", ".", "Directory containing dmrun.toml")
	entry := flag.String("e", "", "Entry proc (overrides config)")
	disassemble := flag.Bool("d", false, "Disassemble every proc instead of running")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dmrun [options]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the program named by dmrun.toml and runs its entry proc.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dmrun                  # Run the entry proc of ./dmrun.toml\n")
		fmt.Fprintf(os.Stderr, "  dmrun -c world -e boot # Run world/ with entry proc 'boot'\n")
		fmt.Fprintf(os.Stderr, "  dmrun -d               # Print a disassembly listing\n")
	}
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	verbosity := cfg.Log.Verbosity
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("dmrun")

	program, err := wire.Load(cfg.ProgramPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}
	log.Infof("loaded program %q with %d procs", program.Name, len(program.Procs))

	tree := vm.NewTree()
	procs, err := program.BuildProcs(tree)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building procs: %v\n", err)
		os.Exit(1)
	}

	if *disassemble {
		for _, proc := range procs {
			fmt.Println(vm.Disassemble(proc))
		}
		return
	}

	resources, err := store.Open(cfg.StorePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening resource store: %v\n", err)
		os.Exit(1)
	}
	defer resources.Close()

	rt := vm.NewRuntime(tree)
	rt.Globals = vm.NewGlobalTable(program.GlobalCount)
	rt.Resources = resources

	entryName := cfg.World.Entry
	if *entry != "" {
		entryName = *entry
	}
	var entryProc *vm.Proc
	for _, proc := range procs {
		if proc.Name == entryName {
			entryProc = proc
			break
		}
	}
	if entryProc == nil {
		fmt.Fprintf(os.Stderr, "Error: program has no proc %q\n", entryName)
		os.Exit(1)
	}

	world, err := tree.CreateObject(vm.PathWorld, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating world: %v\n", err)
		os.Exit(1)
	}

	result, err := rt.RunProc(entryProc, world, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
		os.Exit(1)
	}
	if !result.IsNull() {
		fmt.Println(result.Stringify())
	}
}
