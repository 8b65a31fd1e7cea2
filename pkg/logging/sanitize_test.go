package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "********", MaskToken("short-12"))
	masked := MaskToken("abcd1234efgh5678")
	assert.Equal(t, "abcd", masked[:4])
	assert.True(t, strings.HasSuffix(masked, "78"))
	assert.NotContains(t, masked, "1234efgh")
}

func TestRedactCookies(t *testing.T) {
	in := "Cookie: csrf_token=abcd1234efgh5678; session_id=zyxw9876vuts5432"
	out := RedactCookies(in)
	assert.NotContains(t, out, "abcd1234efgh5678")
	assert.NotContains(t, out, "zyxw9876vuts5432")
	assert.Contains(t, out, "csrf_token=")
}

func TestBoundAndClean(t *testing.T) {
	assert.Equal(t, "abc", BoundAndClean("  abc\x00\x1f  ", 10))
	assert.Equal(t, "abcde", BoundAndClean("abcdefgh", 5))
}

func TestSummarizeBody(t *testing.T) {
	assert.Equal(t, "", SummarizeBody(nil))
	assert.Equal(t, "bytes=5", SummarizeBody([]byte("hello")))
}
