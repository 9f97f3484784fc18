package sheet

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// TodayPatterns lists the ways a sheet name may spell the date of now
func TodayPatterns(now time.Time) []string {
	m, d := int(now.Month()), now.Day()
	return []string{
		now.Format("2006-01-02"),
		now.Format("2006.01.02"),
		now.Format("20060102"),
		now.Format("01-02"),
		now.Format("01.02"),
		now.Format("0102"),
		strconv.Itoa(m) + "." + strconv.Itoa(d),
		strconv.Itoa(m) + "-" + strconv.Itoa(d),
		strconv.Itoa(m) + "월" + strconv.Itoa(d) + "일",
		strconv.Itoa(m) + "월 " + strconv.Itoa(d) + "일",
	}
}

// SelectToday keeps the sheets named for the date of now plus every sheet keep
// accepts. With no date match the first sheet is used.
func SelectToday(names []string, now time.Time, keep func(string) bool) []string {
	pats := TodayPatterns(now)
	var dated, kept []string
	for _, n := range names {
		switch {
		case keep != nil && keep(n):
			kept = append(kept, n)
		case slices.ContainsFunc(pats, func(p string) bool { return strings.Contains(n, p) }):
			dated = append(dated, n)
		}
	}
	if len(dated) == 0 && len(names) > 0 && !slices.Contains(kept, names[0]) {
		dated = names[:1]
	}
	return order(names, append(dated, kept...))
}

// Without drops ignored sheet names; comparison trims and ignores case
func Without(names, ignore []string) []string {
	if len(ignore) == 0 {
		return names
	}
	skip := make(map[string]struct{}, len(ignore))
	for _, n := range ignore {
		skip[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := skip[strings.ToLower(strings.TrimSpace(n))]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// order returns picked in the order names lists them
func order(names, picked []string) []string {
	out := make([]string, 0, len(picked))
	for _, n := range names {
		if slices.Contains(picked, n) && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
