package procutil

import (
	ps "github.com/shirou/gopsutil/v4/process"
)

// Ancestors walks the parent-of chain starting at pid, returning up to
// maxDepth parent pids (nearest first). Used by the loopback-TCP peer
// authenticator to check whether a connecting process descends from the
// expected child within a bounded depth.
func Ancestors(pid int32, maxDepth int) []int32 {
	var chain []int32
	current := pid

	for i := 0; i < maxDepth; i++ {
		proc, err := ps.NewProcess(current)
		if err != nil {
			break
		}
		ppid, err := proc.Ppid()
		if err != nil || ppid == 0 {
			break
		}
		chain = append(chain, ppid)
		current = ppid
	}

	return chain
}
