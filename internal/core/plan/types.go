package plan

import "gopkg.in/yaml.v3"

// =============================================================================
// Plan File Document
// =============================================================================

// document is the on-disk shape of a plan file.
//
//	name: lending
//	phases:
//	  - name: libraries
//	    artifacts:
//	      - name: MathLib
//	        category: libraries
//	        source: src/libs/MathLib.sol:MathLib
//	  - name: core
//	    prerequisites: [tokens.USDC]
//	    artifacts:
//	      - name: Pool
//	        category: contracts
//	        source: src/core/Pool.sol:Pool
//	        libraries:
//	          - source: src/libs/MathLib.sol
//	            name: MathLib
//	            ref: libraries.MathLib
//	        args:
//	          - ${tokens.USDC}
//	          - {deployer: true}
//	          - "500"
//	    post_steps:
//	      - name: register-pool
//	        target: contracts.Registry
//	        signature: addPool(address)
//	        args: [{ref: contracts.Pool}]
type document struct {
	Name   string          `yaml:"name"`
	Phases []phaseDocument `yaml:"phases"`
}

type phaseDocument struct {
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description"`
	Prerequisites []string           `yaml:"prerequisites"`
	Artifacts     []artifactDocument `yaml:"artifacts"`
	PostSteps     []postStepDocument `yaml:"post_steps"`
}

type artifactDocument struct {
	Name             string            `yaml:"name"`
	Category         string            `yaml:"category"`
	Source           string            `yaml:"source"`
	Description      string            `yaml:"description"`
	Args             []yaml.Node       `yaml:"args"`
	Libraries        []libraryDocument `yaml:"libraries"`
	DependsOn        []string          `yaml:"depends_on"`
	VerifyCollisions []string          `yaml:"verify_collisions"`
}

type libraryDocument struct {
	Source string `yaml:"source"`
	Name   string `yaml:"name"`
	Ref    string `yaml:"ref"`
}

type postStepDocument struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Target      string      `yaml:"target"`
	Signature   string      `yaml:"signature"`
	Args        []yaml.Node `yaml:"args"`
}

// argDocument is the mapping form of an argument.
type argDocument struct {
	Ref      string `yaml:"ref"`
	Deployer bool   `yaml:"deployer"`
	Value    string `yaml:"value"`
}
