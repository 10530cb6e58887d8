package features

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// LocateDescriptorSpec returns the single descriptor specification file in dir
// matching pattern. Zero or several candidates is a configuration error:
// choosing between fingerprint definitions is not something to guess.
//
// If explicit is non-empty it is used as-is and only checked for existence.
func LocateDescriptorSpec(dir, pattern, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: descriptor spec %s: %v", bioactivity.ErrConfiguration, explicit, err)
		}
		return explicit, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("%w: invalid descriptor spec pattern %q: %v", bioactivity.ErrConfiguration, pattern, err)
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no descriptor spec matching %q in %s", bioactivity.ErrConfiguration, pattern, dir)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = filepath.Base(m)
		}
		return "", fmt.Errorf("%w: %d descriptor specs match %q in %s: %v (set fingerprint.descriptor_spec)",
			bioactivity.ErrConfiguration, len(matches), pattern, dir, names)
	}
}
