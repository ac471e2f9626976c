package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	a, err := Parse("15.98")
	assert.NoError(t, err)
	assert.Equal(t, Amount(1598), a)

	a, err = Parse("7")
	assert.NoError(t, err)
	assert.Equal(t, Amount(700), a)

	a, err = Parse(" 0.01 ")
	assert.NoError(t, err)
	assert.Equal(t, Amount(1), a)

	_, err = Parse("15.989")
	assert.Error(t, err, "sub-cent precision should be rejected")

	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestFromFloat(t *testing.T) {
	assert.Equal(t, Amount(1598), FromFloat(15.98))
	assert.Equal(t, Amount(799), FromFloat(7.99))
	// Rounds half away from zero at the boundary.
	assert.Equal(t, Amount(800), FromFloat(7.995))
}

func TestJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(Amount(1598))
	assert.NoError(t, err)
	assert.Equal(t, "15.98", string(b))

	var a Amount
	assert.NoError(t, json.Unmarshal([]byte("15.98"), &a))
	assert.Equal(t, Amount(1598), a)

	assert.NoError(t, json.Unmarshal([]byte(`"7.99"`), &a))
	assert.Equal(t, Amount(799), a)
}

func TestSplitEven(t *testing.T) {
	parts := SplitEven(1000, 3)
	assert.Equal(t, []Amount{334, 333, 333}, parts)
	assert.Equal(t, Amount(1000), Sum(parts), "parts must sum exactly to the total")

	parts = SplitEven(1598, 2)
	assert.Equal(t, []Amount{799, 799}, parts)

	assert.Nil(t, SplitEven(100, 0))
}

func TestString(t *testing.T) {
	assert.Equal(t, "15.98", Amount(1598).String())
	assert.Equal(t, "0.99", Amount(99).String())
	assert.Equal(t, "-0.99", Amount(-99).String())
	assert.Equal(t, Amount(99), Amount(-99).Abs())
}
