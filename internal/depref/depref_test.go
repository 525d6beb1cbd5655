package depref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayKey(t *testing.T) {
	cases := []struct {
		name string
		dep  DepRef
		want string
	}{
		{"registry", RegistryRef{Name: "base", Version: "1.2.0"}, "base-1.2.0"},
		{"repo", RepoRef{Name: "base", URL: "https://github.com/dfinity/motoko-base"}, "base-https://github.com/dfinity/motoko-base"},
		{"local", LocalRef{Name: "base", Path: "../base"}, "base-../base"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.dep.DisplayKey())
			assert.Equal(t, "base", tc.dep.DepName())
		})
	}
}

func TestVariantsAreDistinctTypes(t *testing.T) {
	var refs []DepRef = []DepRef{
		RegistryRef{Name: "a", Version: "1.0.0"},
		RepoRef{Name: "a", URL: "https://github.com/a/a"},
		LocalRef{Name: "a", Path: "./a"},
	}
	kinds := map[string]bool{}
	for _, r := range refs {
		switch r.(type) {
		case RegistryRef:
			kinds["registry"] = true
		case RepoRef:
			kinds["repo"] = true
		case LocalRef:
			kinds["local"] = true
		default:
			t.Fatalf("unexpected type %T", r)
		}
	}
	assert.Len(t, kinds, 3)
}
