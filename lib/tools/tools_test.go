package libsurveytools_test

import (
	"testing"

	"github.com/MerleBarney/encrypted-survey/lib/tools"
	"github.com/stretchr/testify/assert"
)

// TestInt64ArrayToString tests the conversion of an int64 array to a string and back
func TestInt64ArrayToString(t *testing.T) {
	toTest := []int64{2, 0, 3, 7, 1}

	str := libsurveytools.Int64ArrayToString(toTest)
	assert.Equal(t, toTest, libsurveytools.StringToInt64Array(str))

	assert.Equal(t, "", libsurveytools.Int64ArrayToString([]int64{}))
	assert.Empty(t, libsurveytools.StringToInt64Array(""))
}
