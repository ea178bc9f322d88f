package identity

import (
	"fmt"
	"strings"
)

// Anonymous is the developer identity used when an author declines to
// name one.
const Anonymous = "ssi:anonymous"

// CheckDeveloper validates a developer identity string. Identities are
// "dns:" names (a domain the developer controls) or "ssi:" names
// (self-sovereign identifiers).
func CheckDeveloper(dev string) error {
	scheme, rest, ok := strings.Cut(dev, ":")
	if !ok {
		return fmt.Errorf("developer identity must be scheme-prefixed, got %q", dev)
	}
	if rest == "" {
		return fmt.Errorf("developer identity %q has an empty name", dev)
	}
	switch scheme {
	case "dns":
		for _, char := range rest {
			if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-' || char == '.' {
				continue
			}
			return fmt.Errorf("invalid character %q in dns developer identity", char)
		}
		return nil
	case "ssi":
		for _, char := range rest {
			if char <= ' ' || char > 126 {
				return fmt.Errorf("invalid character %q in ssi developer identity", char)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported developer identity scheme %q", scheme)
	}
}
