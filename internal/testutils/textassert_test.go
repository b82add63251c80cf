package testutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	failures []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, strings.TrimSpace(format))
}

func TestAssertMatchesIgnoringTrailingWhitespace(t *testing.T) {
	rec := &recordingT{}
	NewTextAsserter(rec).Assert("line one  \nline two\n", "line one\nline two")
	assert.Empty(t, rec.failures)
}

func TestAssertReportsDiffOnMismatch(t *testing.T) {
	rec := &recordingT{}
	NewTextAsserter(rec).Assert("alpha\nbeta", "alpha\ngamma")
	assert.Len(t, rec.failures, 1)
}

func TestIgnoreEmptyLines(t *testing.T) {
	rec := &recordingT{}
	NewTextAsserter(rec, WithIgnoreEmptyLines(true)).Assert("a\n\n\nb", "a\nb")
	assert.Empty(t, rec.failures)
}
