package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderCarriesCategoryAndContext(t *testing.T) {
	t.Parallel()

	base := NewStd("decode failed")
	ee := New(base).
		Component("audio").
		Category(CategoryDecode).
		Context("mime", "audio/mpeg").
		FileContext("/tmp/in.mp3", 1024).
		Build()

	assert.Equal(t, "decode failed", ee.Error())
	assert.Equal(t, CategoryDecode, ee.ErrorCategory())
	assert.Equal(t, "audio", ee.GetComponent())

	ctx := ee.GetContext()
	assert.Equal(t, "audio/mpeg", ctx["mime"])
	assert.Equal(t, "/tmp/in.mp3", ctx["file_path"])
	assert.Equal(t, int64(1024), ctx["file_size"])
}

func TestBuilderDefaultsToGenericCategory(t *testing.T) {
	t.Parallel()

	ee := Newf("oops %d", 42).Build()
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "oops 42", ee.Error())
}

func TestUnwrapPreservesChain(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	wrapped := fmt.Errorf("outer: %w", sentinel)
	ee := New(wrapped).Category(CategoryRender).Build()

	assert.True(t, Is(ee, sentinel))

	var target *EnhancedError
	require.True(t, As(ee, &target))
	assert.Equal(t, CategoryRender, target.Category)
}

func TestIsMatchesByCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryTimeout).Build()
	b := Newf("b").Category(CategoryTimeout).Build()
	c := Newf("c").Category(CategoryDecode).Build()

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

type recordingReporter struct {
	seen []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.seen = append(r.seen, ee)
}

func TestReporterReceivesBuiltErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetReporter(rec)
	defer SetReporter(nil)

	ee := Newf("telemetry me").Category(CategoryJobQueue).Build()

	require.Len(t, rec.seen, 1)
	assert.Same(t, ee, rec.seen[0])
	assert.True(t, ee.IsReported())
}
