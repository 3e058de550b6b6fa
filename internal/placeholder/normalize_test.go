package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"   \t\n ", ""},
		{"YOUR COMPANY", "your company"},
		{"  Your   Company \n Name ", "your company name"},
		{"[Company Name]", "[company name]"},
		{"__Company__", "__company__"},
		{"Company/Organization Name", "companyorganization name"},
		{"a , b", "a  b"},
		{"*brand* <name> {x} (y) ...-", "*brand* <name> {x} (y) ...-"},
		{"ΣΟΦΙΑ", "σοφια"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"YOUR  COMPANY!!", "[Business  Name]", "Acme, Inc.", "ΣΟΦΙΑ"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}
