package util

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var tokenizer = regexp.MustCompile(`(\d+|\D+)`)

type naturalSortToken struct {
	str   string
	num   int
	isNum bool
}

func tokenize(s string) []naturalSortToken {
	parts := tokenizer.FindAllString(s, -1)
	tokens := make([]naturalSortToken, len(parts))
	for i, p := range parts {
		if num, err := strconv.Atoi(p); err == nil {
			tokens[i] = naturalSortToken{num: num, isNum: true}
		} else {
			tokens[i] = naturalSortToken{str: strings.ToLower(p)}
		}
	}
	return tokens
}

// NaturalSortLess orders "img2.jpg" before "img10.jpg".
func NaturalSortLess(s1, s2 string) bool {
	t1 := tokenize(s1)
	t2 := tokenize(s2)

	for i := 0; i < min(len(t1), len(t2)); i++ {
		// Numbers sort before text.
		if t1[i].isNum != t2[i].isNum {
			return t1[i].isNum
		}
		if t1[i].isNum {
			if t1[i].num != t2[i].num {
				return t1[i].num < t2[i].num
			}
		} else if t1[i].str != t2[i].str {
			return t1[i].str < t2[i].str
		}
	}
	return len(t1) < len(t2)
}

// SortPaths sorts paths in place by natural order of their file names, then
// by the full path for names that compare equal.
func SortPaths(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		bi, bj := filepath.Base(paths[i]), filepath.Base(paths[j])
		if NaturalSortLess(bi, bj) {
			return true
		}
		if NaturalSortLess(bj, bi) {
			return false
		}
		return paths[i] < paths[j]
	})
}
