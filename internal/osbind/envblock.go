package osbind

import (
	"sort"
	"unicode/utf16"
)

// utf16Block builds the double-NUL-terminated UCS-2 block CreateProcessAsUser
// expects for a CREATE_UNICODE_ENVIRONMENT child: each NAME=VALUE entry is
// NUL-terminated, and the whole block ends with an extra NUL.
//
// Windows expects environment blocks sorted case-insensitively; callers that
// build one from scratch benefit from a stable order, so we sort defensively
// even though most inputs already come pre-sorted from the OS.
func utf16Block(vars []string) ([]uint16, error) {
	sorted := make([]string, len(vars))
	copy(sorted, vars)
	sort.Slice(sorted, func(i, j int) bool {
		ki, _, _ := splitKV(sorted[i])
		kj, _, _ := splitKV(sorted[j])
		return foldLess(ki, kj)
	})

	var block []uint16
	for _, kv := range sorted {
		block = append(block, utf16.Encode([]rune(kv))...)
		block = append(block, 0)
	}
	block = append(block, 0)
	return block, nil
}

func foldLess(a, b string) bool {
	la, lb := len(a), len(b)
	for i := 0; i < la && i < lb; i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return ca < cb
		}
	}
	return la < lb
}
