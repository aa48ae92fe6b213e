package protect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectRestoreRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain prose with no images at all",
		"![cover](images/cover.png)",
		"before ![a](x.png) middle ![b](y.jpg) after",
		"# Heading\n\n![fig 1](img/1.png)\n\ntext\n\n![fig 2](img/2.png)\n",
		"inline ![alt with spaces](path%20with/escapes.png) tail",
	}

	for _, in := range cases {
		protected, table := Protect(in)
		assert.Equal(t, in, Restore(protected, table), "round trip for %q", in)
	}
}

func TestProtectReplacesInOrder(t *testing.T) {
	in := "![first](1.png) and ![second](2.png) and ![third](3.png)"
	protected, table := Protect(in)

	require.Len(t, table, 3)
	assert.Equal(t, "![first](1.png)", table[0])
	assert.Equal(t, "![third](3.png)", table[2])
	assert.Equal(t, "<<IMG_0>> and <<IMG_1>> and <<IMG_2>>", protected)
	assert.NotContains(t, protected, "![")
}

func TestRestoreToleratesReorderedPlaceholders(t *testing.T) {
	in := "![a](a.png) x ![b](b.png)"
	_, table := Protect(in)

	// A translator may move tokens around inside a chunk.
	shuffled := "<<IMG_1>> y <<IMG_0>>"
	out := Restore(shuffled, table)
	assert.Equal(t, "![b](b.png) y ![a](a.png)", out)
}

func TestRestoreIdempotentWithoutPlaceholders(t *testing.T) {
	text := "nothing to see here"
	assert.Equal(t, text, Restore(text, nil))
	assert.Equal(t, text, Restore(text, []string{"![a](a.png)"}))
}

func TestMalformedReferencePassesThrough(t *testing.T) {
	// Missing closing paren never matches and is left untouched.
	in := "ok ![fine](ok.png) and broken ![alt](no-close end"
	protected, table := Protect(in)

	require.Len(t, table, 1)
	assert.Equal(t, "![fine](ok.png)", table[0])
	assert.True(t, strings.Contains(protected, "![alt](no-close end"))
	assert.Equal(t, in, Restore(protected, table))
}
