package recon

import (
	"fmt"
	"strings"
)

// execErrorTable maps known driver/network error fragments to text an
// operator can act on without reading driver internals. First match wins.
var execErrorTable = []struct {
	fragment string
	friendly string
}{
	{"context deadline exceeded", "source query timed out"},
	{"connection refused", "source database is unreachable"},
	{"no such host", "source database host not found"},
	{"password authentication failed", "source database rejected the credentials"},
	{"login failed", "source database rejected the credentials"},
	{"access denied", "source database rejected the credentials"},
	{"does not exist", "queried table or column is missing at the source"},
	{"invalid object name", "queried table or column is missing at the source"},
	{"unknown column", "queried table or column is missing at the source"},
	{"too many connections", "source database is out of connections"},
}

// TranslateExecError prefixes a known execution error with a
// user-friendly description. The original error is preserved in the
// chain; unknown errors pass through untouched.
func TranslateExecError(err error) error {
	if err == nil {
		return nil
	}
	lower := strings.ToLower(err.Error())
	for _, entry := range execErrorTable {
		if strings.Contains(lower, entry.fragment) {
			return fmt.Errorf("%s: %w", entry.friendly, err)
		}
	}
	return err
}
