package supervisor

import (
	"os"
	"strconv"
	"strings"
)

// PidFileName is the child pid file's leaf name, written by the child under
// its own resolved user data directory.
const PidFileName = "gpii.pid"

// readPidFile parses the decimal pid recorded at path. ok is false if the
// file is absent or unparsable, in which case the caller should treat it as
// "no managed child exists" rather than an error.
func readPidFile(path string) (pid int32, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	parsed, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(parsed), true
}
