package meta

import (
	"regexp"
	"strconv"
	"strings"

	"sql-gate/internal/model"
)

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)`)

// ParseVersion turns a raw VERSION() string into a backend profile.
// TiDB reports itself inside a MySQL-compatible banner, e.g.
// "5.7.25-TiDB-v6.5.0"; the part after the TiDB marker carries the
// real version. An unparsable string yields major=minor=0 so that
// version-gated logic degrades instead of crashing.
func ParseVersion(raw string) model.ServerProfile {
	p := model.ServerProfile{Type: model.DBTypeMySQL, Raw: raw}

	probe := raw
	for _, marker := range []string{"TiDB-v", "tidb-v", "TiDB-", "tidb-"} {
		if i := strings.Index(raw, marker); i >= 0 {
			p.Type = model.DBTypeTiDB
			probe = raw[i+len(marker):]
			break
		}
	}

	if m := versionRe.FindStringSubmatch(probe); m != nil {
		p.Major, _ = strconv.Atoi(m[1])
		p.Minor, _ = strconv.Atoi(m[2])
	}
	return p
}
