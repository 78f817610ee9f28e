package dns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionMarshalParseRoundTrip(t *testing.T) {
	q := Question{Name: NewName("Example.com"), Type: TypeA, Class: ClassIN}
	b, err := q.Marshal()
	require.NoError(t, err)

	off := 0
	got, err := ParseQuestion(b, &off)
	require.NoError(t, err)
	assert.Equal(t, q, got)
	assert.Equal(t, len(b), off)
}

func TestParseQuestionDoesNotNormalizeCase(t *testing.T) {
	q := Question{Name: NewName("WWW.Example.COM"), Type: TypeAAAA, Class: ClassIN}
	b, err := q.Marshal()
	require.NoError(t, err)

	off := 0
	got, err := ParseQuestion(b, &off)
	require.NoError(t, err)
	assert.Equal(t, Name("WWW.Example.COM."), got.Name)
}
