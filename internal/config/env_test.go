package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString_FirstSetKeyWins(t *testing.T) {
	t.Setenv("KNAPSACK_TEST_A", "")
	t.Setenv("KNAPSACK_TEST_B", "b")

	assert.Equal(t, "b", String("def", "KNAPSACK_TEST_A", "KNAPSACK_TEST_B"))
	assert.Equal(t, "def", String("def", "KNAPSACK_TEST_A"))
}

func TestInt(t *testing.T) {
	t.Setenv("KNAPSACK_TEST_INT", "12")
	assert.Equal(t, 12, Int("KNAPSACK_TEST_INT", 3))

	t.Setenv("KNAPSACK_TEST_INT", "-1")
	assert.Equal(t, 3, Int("KNAPSACK_TEST_INT", 3))

	t.Setenv("KNAPSACK_TEST_INT", "abc")
	assert.Equal(t, 3, Int("KNAPSACK_TEST_INT", 3))
}

func TestDuration(t *testing.T) {
	t.Setenv("KNAPSACK_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, Duration("KNAPSACK_TEST_DUR", time.Second))

	t.Setenv("KNAPSACK_TEST_DUR", "soon")
	assert.Equal(t, time.Second, Duration("KNAPSACK_TEST_DUR", time.Second))
}

func TestPort(t *testing.T) {
	t.Setenv("KNAPSACK_TEST_PORT", "")
	assert.Equal(t, ":6543", Port("KNAPSACK_TEST_PORT", 6543))
}
