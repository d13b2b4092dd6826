// Package version formats the release number.
package version

import (
	"fmt"
	"strings"
)

// Current is the release as major, minor, patch and an optional
// pre-release tag.
var Current = Version{Major: 1, Minor: 0, Patch: 0, Tag: "rc1"}

// Version is a release number.
type Version struct {
	Major, Minor, Patch int
	Tag                 string
}

// Short returns "major.minor.patch".
func (v Version) Short() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// String appends the pre-release tag directly, as in "1.2.3b1".
func (v Version) String() string {
	return v.Short() + strings.TrimSpace(v.Tag)
}

// Format renders a tuple such as (1, 0, 1) or (1, 2, 3, "b1"). Missing
// numeric parts count as zero; anything past the fourth element is ignored.
func Format(parts ...any) string {
	var v Version
	nums := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, part := range parts {
		switch {
		case i < len(nums):
			switch n := part.(type) {
			case int:
				*nums[i] = n
			case string:
				_, _ = fmt.Sscanf(n, "%d", nums[i])
			}
		case i == len(nums):
			v.Tag = fmt.Sprint(part)
		}
	}
	return v.String()
}
