package todo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText_Valid(t *testing.T) {
	got, err := NormalizeText("  Buy milk \n")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got)
}

func TestNormalizeText_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := NormalizeText(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, IsValidation(err))
	}
}

func TestNormalizeText_Length(t *testing.T) {
	exact := strings.Repeat("a", MaxTextLength)
	got, err := NormalizeText(exact)
	require.NoError(t, err)
	assert.Equal(t, exact, got)

	_, err = NormalizeText(exact + "a")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "200 characters")
}

func TestNormalizeText_CountsRunesNotBytes(t *testing.T) {
	// 200 multi-byte characters are still within the limit.
	text := strings.Repeat("\u00e9", MaxTextLength)
	_, err := NormalizeText(text)
	assert.NoError(t, err)
}

func TestNormalizeText_NFC(t *testing.T) {
	// "e" + combining acute accent composes to a single precomposed rune.
	got, err := NormalizeText("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", got)
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	todos := []Todo{
		{ID: "a", CreatedAt: base},
		{ID: "c", CreatedAt: base.Add(2 * time.Second)},
		{ID: "b1", CreatedAt: base.Add(time.Second)},
		{ID: "b2", CreatedAt: base.Add(time.Second)},
	}
	SortNewestFirst(todos)

	ids := make([]string, len(todos))
	for i, td := range todos {
		ids[i] = td.ID
	}
	assert.Equal(t, []string{"c", "b1", "b2", "a"}, ids)
}

func TestClone(t *testing.T) {
	orig := []Todo{{ID: "a"}}
	cp := Clone(orig)
	cp[0].Completed = true
	assert.False(t, orig[0].Completed)

	empty := Clone(nil)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestIndexOf(t *testing.T) {
	todos := []Todo{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, 1, IndexOf(todos, "b"))
	assert.Equal(t, -1, IndexOf(todos, "z"))
}
