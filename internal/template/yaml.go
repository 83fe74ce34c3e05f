package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridmind/gridmind/internal/core"
)

// LoadPackFile parses one YAML template pack file. A pack file holds one or
// more definitions under a top-level "templates" key.
func LoadPackFile(path string) ([]core.TemplateContract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template pack: %w", err)
	}
	return parsePack(data, path)
}

// LoadPackDir loads every .yaml/.yml file in a directory into contracts.
// A missing directory is not an error; template packs are optional.
func LoadPackDir(dir string) ([]core.TemplateContract, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading template pack dir: %w", err)
	}

	var contracts []core.TemplateContract
	for _, e := range entries {
		if e.IsDir() || !isPackFile(e.Name()) {
			continue
		}
		loaded, err := LoadPackFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, loaded...)
	}
	return contracts, nil
}

func isPackFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

type packFile struct {
	Templates []Definition `yaml:"templates"`
}

func parsePack(data []byte, path string) ([]core.TemplateContract, error) {
	var pack packFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	contracts := make([]core.TemplateContract, 0, len(pack.Templates))
	for _, def := range pack.Templates {
		c, err := Compile(def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}
