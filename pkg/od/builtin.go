package od

import (
	"embed"
	"fmt"
	"sync"
)

//go:embed definitions/*.yaml
var definitionFS embed.FS

// Definition file names inside the embedded definitions directory.
const (
	BridgeDefinitionFile      = "definitions/bridge.yaml"
	PowerModuleDefinitionFile = "definitions/powermodule.yaml"
)

var (
	bridgeOnce sync.Once
	bridgeDict *Dictionary

	pmOnce sync.Once
	pmDict *Dictionary
)

// Bridge returns the power bridge dictionary (objects 0x24xx).
func Bridge() *Dictionary {
	bridgeOnce.Do(func() {
		bridgeDict = mustBuiltin(BridgeDefinitionFile)
	})
	return bridgeDict
}

// PowerModule returns the internal power module dictionary (objects 0x21xx).
func PowerModule() *Dictionary {
	pmOnce.Do(func() {
		pmDict = mustBuiltin(PowerModuleDefinitionFile)
	})
	return pmDict
}

// BuiltinDefinition returns the raw embedded definition by file name.
func BuiltinDefinition(name string) (*RawDefinition, error) {
	data, err := definitionFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading embedded %s: %w", name, err)
	}
	return ParseDefinition(data)
}

func mustBuiltin(name string) *Dictionary {
	def, err := BuiltinDefinition(name)
	if err != nil {
		panic(err)
	}
	d, err := def.Build()
	if err != nil {
		panic(fmt.Sprintf("building %s: %v", name, err))
	}
	return d
}
