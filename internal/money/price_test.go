package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceString(t *testing.T) {
	c := NewCache()
	assert.Equal(t, "$1,234.05", c.Intern(123405).String())
	assert.Equal(t, "$-1,234.05", c.Intern(-123405).String())
	assert.Equal(t, "$0.00", c.Intern(0).String())
	assert.Equal(t, "$0.05", c.Intern(5).String())
}

func TestPriceParseRoundTrip(t *testing.T) {
	c := NewCache()
	for _, s := range []string{"$1,234.05", "$-1,234.05", "$0.00", "$0.05"} {
		p, err := c.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.String())
	}
}

func TestPriceParseRejects(t *testing.T) {
	c := NewCache()
	for _, s := range []string{"", "  ", "1.2.3", "abc", "1.2", "1.234"} {
		_, err := c.Parse(s)
		assert.ErrorIs(t, err, ErrInvalidPrice, "expected error for %q", s)
	}
}

func TestPriceParseAcceptsCommasAndDollar(t *testing.T) {
	c := NewCache()
	p, err := c.Parse("$1,234.05")
	require.NoError(t, err)
	assert.Equal(t, 123405, p.Cents())
}

func TestPriceArithmeticRoundTrip(t *testing.T) {
	c := NewCache()
	a := c.Intern(500)
	b := c.Intern(125)
	assert.True(t, c.Subtract(c.Add(a, b), b).Equal(a))
	assert.True(t, c.Multiply(a, 0).Equal(c.Intern(0)))
	assert.True(t, c.Multiply(a, 1).Equal(a))
	assert.True(t, c.Multiply(c.Multiply(a, -1), -1).Equal(a))
}

func TestPriceCompareAndEqual(t *testing.T) {
	c := NewCache()
	a := c.Intern(100)
	b := c.Intern(200)
	assert.True(t, a.Compare(b) < 0)
	assert.True(t, b.Compare(a) > 0)
	assert.True(t, a.Compare(a) == 0)
	assert.True(t, a.Equal(c.Intern(100)))
}

func TestCacheEvictsSmallestOnOverflow(t *testing.T) {
	c := NewCache()
	for i := 0; i < MaxEntries; i++ {
		c.Intern(i)
	}
	require.Equal(t, MaxEntries, c.Len())

	// Inserting one more evicts cents=0, the smallest key.
	c.Intern(MaxEntries)
	assert.Equal(t, MaxEntries, c.Len())

	reinterned := c.Intern(0)
	assert.Equal(t, 0, reinterned.Cents())
	assert.Equal(t, MaxEntries, c.Len())
}

func TestCacheIsNegative(t *testing.T) {
	c := NewCache()
	assert.True(t, c.Intern(-1).IsNegative())
	assert.False(t, c.Intern(0).IsNegative())
	assert.False(t, c.Intern(1).IsNegative())
}
