package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageImagePreference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		urls map[string]string
		want string
	}{
		{"large first", map[string]string{"small": "s", "large": "l", "list": "t"}, "l"},
		{"list before small", map[string]string{"small": "s", "list": "t"}, "t"},
		{"other keys by name", map[string]string{"zeta": "z", "alpha": "a", "mid": "m"}, "a"},
		{"empty values skipped", map[string]string{"alpha": "", "beta": "b"}, "b"},
		{"none", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Product{PackageImageURLs: tc.urls}
			for range 20 {
				assert.Equal(t, tc.want, p.PackageImage())
			}
		})
	}
}
