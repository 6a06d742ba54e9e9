package deployment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

// =============================================================================
// Address Extraction Functions
// =============================================================================

// ExtractionMethod records how an address was found in boundary output.
type ExtractionMethod string

const (
	ExtractedFromJSON    ExtractionMethod = "json"
	ExtractedFromPattern ExtractionMethod = "pattern"
)

// Extraction is the result of scanning deploy output.
type Extraction struct {
	Address string
	TxHash  string
	Method  ExtractionMethod
}

// createOutput is the structured output of `forge create --json`.
type createOutput struct {
	Deployer        string `json:"deployer"`
	DeployedTo      string `json:"deployedTo"`
	TransactionHash string `json:"transactionHash"`
}

var (
	deployedToPattern = regexp.MustCompile(`(?i)deployed\s+to:?\s*(0x[0-9a-fA-F]{40})\b`)
	jsonFieldPattern  = regexp.MustCompile(`"deployedTo"\s*:\s*"(0x[0-9a-fA-F]{40})"`)
	txHashPattern     = regexp.MustCompile(`(?i)transaction\s+hash:?\s*(0x[0-9a-fA-F]{64})\b`)
)

// ExtractAddress finds the deployed address in raw boundary output.
//
// The structured form is tried first: the whole output, then every line that
// looks like a JSON object. If no structured result carries a valid address
// the raw text is scanned for "Deployed to: 0x..." or a "deployedTo" field.
// The exit status of the boundary is irrelevant here; callers scan output
// even after a nonzero exit.
//
// Example:
//
//	ExtractAddress(`{"deployer":"0x..","deployedTo":"0x5FbDB2315678afecb367f032d93F642f64180aa3","transactionHash":"0x.."}`)
//	// Returns: Extraction{Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Method: "json"}, true
//
//	ExtractAddress("Deployer: 0x..\nDeployed to: 0x5fbdb2315678afecb367f032d93f642f64180aa3\n")
//	// Returns: Extraction{Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Method: "pattern"}, true
func ExtractAddress(output string) (Extraction, bool) {
	if ex, ok := extractStructured(output); ok {
		return ex, true
	}
	return extractPattern(output)
}

func extractStructured(output string) (Extraction, bool) {
	candidates := []string{strings.TrimSpace(output)}

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			candidates = append(candidates, line)
		}
	}

	for _, c := range candidates {
		var out createOutput
		if err := json.Unmarshal([]byte(c), &out); err != nil {
			continue
		}
		addr, err := NormalizeAddress(out.DeployedTo)
		if err != nil {
			continue
		}
		return Extraction{Address: addr, TxHash: out.TransactionHash, Method: ExtractedFromJSON}, true
	}
	return Extraction{}, false
}

func extractPattern(output string) (Extraction, bool) {
	for _, re := range []*regexp.Regexp{deployedToPattern, jsonFieldPattern} {
		m := re.FindStringSubmatch(output)
		if len(m) < 2 {
			continue
		}
		addr, err := NormalizeAddress(m[1])
		if err != nil {
			continue
		}
		ex := Extraction{Address: addr, Method: ExtractedFromPattern}
		if tx := txHashPattern.FindStringSubmatch(output); len(tx) >= 2 {
			ex.TxHash = tx[1]
		}
		return ex, true
	}
	return Extraction{}, false
}

// NormalizeAddress validates a hex address and returns its checksummed form.
// The zero address is rejected.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("%w: zero address", domain.ErrInvalidAddress)
	}
	return addr.Hex(), nil
}
