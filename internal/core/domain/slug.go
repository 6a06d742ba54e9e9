package domain

import "strings"

// =============================================================================
// Network Keys
// =============================================================================

// NetworkFileKey converts a network name to a file-name-safe key.
//
// Letters are lowercased, digits and hyphens kept, and spaces, underscores
// and dots become hyphens. Everything else is dropped. Runs of hyphens
// collapse and leading or trailing hyphens are trimmed. A name with nothing
// left maps to "default".
//
// Example:
//
//	NetworkFileKey("Base Sepolia")   // returns "base-sepolia"
//	NetworkFileKey("arbitrum_one")   // returns "arbitrum-one"
//	NetworkFileKey("../etc/passwd")  // returns "etcpasswd"
func NetworkFileKey(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
			lastHyphen = false
		case r == '-' || r == ' ' || r == '_' || r == '.':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	key := strings.TrimRight(b.String(), "-")
	if key == "" {
		return "default"
	}
	return key
}
