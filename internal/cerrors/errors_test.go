package cerrors

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestErrorFormatsWithAndWithoutRef(t *testing.T) {
	withRef := New(EntryNotFound, "not cached")
	withRef.Ref = "main/linux-64::numpy-1.2.0-py310_0"
	assert.Equal(t, withRef.Error(), "EntryNotFound: not cached (main/linux-64::numpy-1.2.0-py310_0)")

	withoutRef := New(NoWritableCache, "no writable cache configured")
	assert.Equal(t, withoutRef.Error(), "NoWritableCache: no writable cache configured")
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(CorruptArchive, "numpy-1.2.0", cause, "extraction failed")
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsMatchesKindThroughWrappedErrors(t *testing.T) {
	err := Wrap(IntegrityMismatch, "numpy-1.2.0", errors.New("md5 mismatch"), "md5 mismatch")
	assert.Assert(t, Is(err, IntegrityMismatch))
	assert.Assert(t, !Is(err, CorruptArchive))
	assert.Assert(t, !Is(errors.New("plain error"), IntegrityMismatch))
}

func TestKindStringNamesEveryKind(t *testing.T) {
	kinds := []Kind{
		NoWritableCache, CorruptArchive, IntegrityMismatch,
		MissingMetadata, EntryNotFound, PlanUnsatisfiable, PartialFailureBatch,
	}
	for _, k := range kinds {
		assert.Assert(t, k.String() != "Unknown")
	}
	assert.Equal(t, Kind(999).String(), "Unknown")
}
