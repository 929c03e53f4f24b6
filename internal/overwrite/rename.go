package overwrite

import (
	"fmt"
	"path"

	"github.com/halyard-dev/halyard/internal/backend"
)

// UniqueName derives a destination name guaranteed not to collide with any
// entry in the listing. The counter is inserted before the extension:
// "report.pdf" becomes "report_1.pdf", then "report_2.pdf", re-checking
// uniqueness at each step.
func UniqueName(name string, dest *backend.Listing) string {
	if _, taken := dest.Find(name); !taken {
		return name
	}

	ext := path.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, taken := dest.Find(candidate); !taken {
			return candidate
		}
	}
}
