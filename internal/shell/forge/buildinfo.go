package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/core/verification"
)

// ErrBuildInfoNotFound is returned when no build-info file covers a source.
var ErrBuildInfoNotFound = errors.New("build info not found")

// buildInfo is the subset of a forge build-info file that is read.
type buildInfo struct {
	SolcLongVersion string                     `json:"solcLongVersion"`
	Input           verification.StandardInput `json:"input"`
	Output          struct {
		Contracts map[string]map[string]json.RawMessage `json:"contracts"`
	} `json:"output"`
}

// BuildInfoProvider builds verification source bundles from forge's
// build-info output. Run `forge build --build-info` before deploying.
type BuildInfoProvider struct {
	project Project
	license string
}

// NewBuildInfoProvider creates a provider for a project.
func NewBuildInfoProvider(project Project, license string) *BuildInfoProvider {
	return &BuildInfoProvider{project: project, license: license}
}

// Bundle returns the standard-JSON input that compiled the artifact. When
// several build-info files contain the source, the newest wins.
func (p *BuildInfoProvider) Bundle(ctx context.Context, spec domain.ArtifactSpec) (verification.SourceBundle, error) {
	dir := p.project.BuildInfoDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return verification.SourceBundle{}, fmt.Errorf("%w: %v", ErrBuildInfoNotFound, err)
	}

	type candidate struct {
		path    string
		modTime int64
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(dir, e.Name()), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })

	source := spec.SourcePath()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return verification.SourceBundle{}, err
		}
		bi, err := readBuildInfo(f.path)
		if err != nil {
			continue
		}
		if !bi.covers(source, spec.ContractName()) {
			continue
		}
		return verification.SourceBundle{
			ContractName:    source + ":" + spec.ContractName(),
			CompilerVersion: "v" + strings.TrimPrefix(bi.SolcLongVersion, "v"),
			LicenseType:     p.license,
			Input:           bi.Input,
		}, nil
	}
	return verification.SourceBundle{}, fmt.Errorf("%w: no build-info in %s contains %s", ErrBuildInfoNotFound, dir, spec.Source)
}

func readBuildInfo(path string) (*buildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bi buildInfo
	if err := json.Unmarshal(data, &bi); err != nil {
		return nil, err
	}
	return &bi, nil
}

// covers reports whether the build compiled source. When output is present
// the contract symbol must be in it too.
func (b *buildInfo) covers(source, contract string) bool {
	if _, ok := b.Input.Sources[source]; !ok {
		return false
	}
	if len(b.Output.Contracts) == 0 {
		return true
	}
	_, ok := b.Output.Contracts[source][contract]
	return ok
}
