package tapnet

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var validTapName = regexp.MustCompile(`^[a-z0-9]+$`)

func TestNameDeterministicAndBounded(t *testing.T) {
	id := "4F9B2C7A-1111-2222-3333-444455556666"

	n1 := Name(id, 0)
	n2 := Name(id, 0)
	require.Equal(t, n1, n2, "same (vmID, index) must produce the same name")

	require.LessOrEqual(t, len(n1), 15)
	require.True(t, validTapName.MatchString(n1), "tap name %q must be [a-z0-9] only", n1)
	require.Equal(t, "qt4f9b2c7an0", n1)
}

func TestNameVariesByIndex(t *testing.T) {
	id := "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	n0 := Name(id, 0)
	n1 := Name(id, 1)
	require.NotEqual(t, n0, n1)
	require.LessOrEqual(t, len(n1), 15)
}

func TestNameShortID(t *testing.T) {
	// vmID shorter than 8 chars must not panic or overrun.
	n := Name("abcd", 3)
	require.True(t, validTapName.MatchString(n))
}
