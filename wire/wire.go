// Package wire defines the CBOR container that carries compiled procs
// between the compiler and the runtime. The opcode streams inside the
// container are the raw byte encoding the interpreter executes; the
// container only adds the metadata needed to rebuild Proc records.
package wire

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/distributivgesetz/opendream/vm"
)

// FormatVersion is the current container version. Increment on
// incompatible changes.
const FormatVersion = 1

// cborEncMode uses canonical encoding so identical programs serialize to
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Program is a complete compiled unit: every proc plus the size of the
// global table it expects.
type Program struct {
	Version     int         `cbor:"1,keyasint"`
	Name        string      `cbor:"2,keyasint"`
	GlobalCount int         `cbor:"3,keyasint"`
	Procs       []ProcChunk `cbor:"4,keyasint"`
}

// ProcChunk is one compiled proc record.
type ProcChunk struct {
	Name       string   `cbor:"1,keyasint"`
	OwnerPath  string   `cbor:"2,keyasint"`
	Parameters []string `cbor:"3,keyasint"`
	Bytecode   []byte   `cbor:"4,keyasint"`
	SourceFile string   `cbor:"5,keyasint,omitempty"`
	Line       int      `cbor:"6,keyasint,omitempty"`
}

// Marshal serializes a program to CBOR bytes.
func Marshal(p *Program) ([]byte, error) {
	if p.Version == 0 {
		p.Version = FormatVersion
	}
	return cborEncMode.Marshal(p)
}

// Unmarshal deserializes a program from CBOR bytes.
func Unmarshal(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	if p.Version > FormatVersion {
		return nil, fmt.Errorf("wire: program version %d is newer than supported version %d", p.Version, FormatVersion)
	}
	return &p, nil
}

// Load reads and decodes a program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wire: cannot read %s: %w", path, err)
	}
	return Unmarshal(data)
}

// Save encodes and writes a program file.
func Save(path string, p *Program) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("wire: cannot write %s: %w", path, err)
	}
	return nil
}

// BuildProcs converts chunks to runtime Proc records and registers each
// on its owning definition in the tree.
func (p *Program) BuildProcs(tree *vm.Tree) ([]*vm.Proc, error) {
	procs := make([]*vm.Proc, 0, len(p.Procs))
	for i := range p.Procs {
		chunk := &p.Procs[i]
		proc := &vm.Proc{
			Name:       chunk.Name,
			Parameters: chunk.Parameters,
			Bytecode:   chunk.Bytecode,
			SourceFile: chunk.SourceFile,
			Line:       chunk.Line,
		}
		if chunk.OwnerPath != "" {
			owner := vm.ParsePath(chunk.OwnerPath)
			proc.OwnerPath = owner
			def, ok := tree.GetDefinition(owner)
			if !ok {
				return nil, fmt.Errorf("wire: proc %s: no such type %s", chunk.Name, chunk.OwnerPath)
			}
			def.Procs[chunk.Name] = proc
		}
		procs = append(procs, proc)
	}
	return procs, nil
}
