package forge

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ErrProjectNotFound is returned when foundry.toml is missing.
var ErrProjectNotFound = errors.New("foundry.toml not found")

// Project is the part of a Foundry project layout the tool needs.
type Project struct {
	Root string
	Src  string
	Out  string
	Libs []string
}

type foundryProfile struct {
	Src  string   `toml:"src"`
	Out  string   `toml:"out"`
	Libs []string `toml:"libs"`
}

type foundryFile struct {
	Profile map[string]foundryProfile `toml:"profile"`
}

// LoadProject reads foundry.toml under root using the given profile
// ("default" if empty). Unset values take Foundry's defaults.
func LoadProject(root, profile string) (Project, error) {
	if profile == "" {
		profile = "default"
	}
	p := Project{Root: root, Src: "src", Out: "out", Libs: []string{"lib"}}

	var f foundryFile
	path := filepath.Join(root, "foundry.toml")
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, fmt.Errorf("%w: %s", ErrProjectNotFound, path)
		}
		return p, fmt.Errorf("parse %s: %w", path, err)
	}

	// Named profiles inherit from default.
	for _, name := range []string{"default", profile} {
		prof, ok := f.Profile[name]
		if !ok {
			continue
		}
		if prof.Src != "" {
			p.Src = prof.Src
		}
		if prof.Out != "" {
			p.Out = prof.Out
		}
		if len(prof.Libs) > 0 {
			p.Libs = prof.Libs
		}
	}
	return p, nil
}

// BuildInfoDir is where forge writes build-info files.
func (p Project) BuildInfoDir() string {
	return filepath.Join(p.Root, p.Out, "build-info")
}
