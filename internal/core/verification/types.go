// Package verification contains pure functions for source verification:
// classifying service responses, deciding what to do after a poll, and
// preparing the submitted source bundle.
package verification

import "encoding/json"

// Status is what the verification service reports for an address.
type Status struct {
	Verified          bool
	PartiallyVerified bool
	Name              string // contract name the service attributed the bytecode to
}

// SourceFile is one entry of a standard-JSON compiler input.
type SourceFile struct {
	Content string `json:"content"`
}

// StandardInput is the solc standard-JSON input submitted to the service.
type StandardInput struct {
	Language string                `json:"language"`
	Sources  map[string]SourceFile `json:"sources"`
	Settings json.RawMessage       `json:"settings,omitempty"`
}

// SourceBundle is everything needed to submit one artifact.
type SourceBundle struct {
	ContractName    string // "src/core/Pool.sol:Pool"
	CompilerVersion string // "v0.8.20+commit.a1b79de6"
	LicenseType     string
	Input           StandardInput
}

// Clone returns a copy whose Sources map can be modified independently.
func (b SourceBundle) Clone() SourceBundle {
	c := b
	c.Input.Sources = make(map[string]SourceFile, len(b.Input.Sources))
	for k, v := range b.Input.Sources {
		c.Input.Sources[k] = v
	}
	return c
}
