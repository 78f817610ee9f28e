package dns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNameAddsTrailingDot(t *testing.T) {
	assert.Equal(t, Name("example.com."), NewName("example.com"))
	assert.Equal(t, Name("example.com."), NewName("example.com."))
	assert.Equal(t, Root, NewName(""))
}

func TestNameEqualIsByteExact(t *testing.T) {
	assert.True(t, Name("Example.com.").Equal(Name("Example.com.")))
	assert.False(t, Name("Example.com.").Equal(Name("example.com.")))
}

func TestNameHasSuffix(t *testing.T) {
	assert.True(t, Name("www.example.com.").HasSuffix(Name("example.com.")))
	assert.True(t, Name("example.com.").HasSuffix(Name("example.com.")))
	assert.True(t, Name("www.example.com.").HasSuffix(Root))
	assert.False(t, Name("evilexample.com.").HasSuffix(Name("example.com.")))
	assert.False(t, Name("example.com.").HasSuffix(Name("www.example.com.")))
}

func TestNameLabels(t *testing.T) {
	assert.Equal(t, []string{"www", "example", "com"}, Name("www.example.com.").Labels())
	assert.Nil(t, Root.Labels())
}
