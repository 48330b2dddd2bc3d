package pure_utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicate(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Deduplicate([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Deduplicate([]int(nil)))
}
