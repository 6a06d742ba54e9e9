package deployment

import (
	"testing"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ExtractAddress Tests
// =============================================================================

func TestExtractAddress_StructuredJSON(t *testing.T) {
	out := `{"deployer":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266","deployedTo":"0x5fbdb2315678afecb367f032d93f642f64180aa3","transactionHash":"0xabc"}`

	ex, ok := ExtractAddress(out)
	require.True(t, ok)
	assert.Equal(t, mathAddr, ex.Address)
	assert.Equal(t, "0xabc", ex.TxHash)
	assert.Equal(t, ExtractedFromJSON, ex.Method)
}

func TestExtractAddress_JSONLineAmongNoise(t *testing.T) {
	out := "Compiling 42 files with Solc 0.8.20\nCompiler run successful!\n" +
		`{"deployer":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266","deployedTo":"0x5FbDB2315678afecb367f032d93F642f64180aa3","transactionHash":"0xdef"}` +
		"\nError: verification failed: etherscan key missing\n"

	ex, ok := ExtractAddress(out)
	require.True(t, ok)
	assert.Equal(t, mathAddr, ex.Address)
	assert.Equal(t, ExtractedFromJSON, ex.Method)
}

func TestExtractAddress_PatternFallback(t *testing.T) {
	out := `[⠊] Compiling...
Deployer: 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266
Deployed to: 0x5fbdb2315678afecb367f032d93f642f64180aa3
Transaction hash: 0x1111111111111111111111111111111111111111111111111111111111111111
`
	ex, ok := ExtractAddress(out)
	require.True(t, ok)
	assert.Equal(t, mathAddr, ex.Address)
	assert.Equal(t, ExtractedFromPattern, ex.Method)
	assert.Equal(t, "0x1111111111111111111111111111111111111111111111111111111111111111", ex.TxHash)
}

func TestExtractAddress_BrokenJSONFallsBackToField(t *testing.T) {
	out := `{"deployer":"0xf39F","deployedTo":"0x5FbDB2315678afecb367f032d93F642f64180aa3",` // truncated

	ex, ok := ExtractAddress(out)
	require.True(t, ok)
	assert.Equal(t, mathAddr, ex.Address)
	assert.Equal(t, ExtractedFromPattern, ex.Method)
}

func TestExtractAddress_NothingFound(t *testing.T) {
	tests := []string{
		"",
		"Error: insufficient funds for gas * price + value",
		`{"deployedTo":"0x0000000000000000000000000000000000000000"}`,
		"Deployed to: 0x1234",
	}
	for _, out := range tests {
		_, ok := ExtractAddress(out)
		assert.False(t, ok, "output %q", out)
	}
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress(" 0x5fbdb2315678afecb367f032d93f642f64180aa3 ")
	require.NoError(t, err)
	assert.Equal(t, mathAddr, addr)

	_, err = NormalizeAddress("not-an-address")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = NormalizeAddress("0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}
