package pkgref

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestRefEqualIgnoresSideChannelFields(t *testing.T) {
	a := Ref{Channel: "main", Name: "numpy", Version: "1.2.0", BuildString: "py310_0", URL: "http://a"}
	b := Ref{Channel: "main", Name: "numpy", Version: "1.2.0", BuildString: "py310_0", URL: "http://b", Size: 99}
	assert.Assert(t, a.Equal(b))
}

func TestRefLessOrdersByIdentityTuple(t *testing.T) {
	a := Ref{Channel: "main", Name: "numpy", Version: "1.2.0", BuildString: "py310_0"}
	b := Ref{Channel: "main", Name: "numpy", Version: "1.3.0", BuildString: "py310_0"}
	assert.Assert(t, a.Less(b))
	assert.Assert(t, !b.Less(a))
}

func TestDistStrRoundTripsChannelAndNoChannelVariant(t *testing.T) {
	r := Ref{Channel: "main", Name: "numpy", Version: "1.2.0", BuildString: "py310_0"}
	assert.Equal(t, r.DistStr(), "main::numpy-1.2.0-py310_0")
	assert.Equal(t, r.DistStrNoChannel(), "numpy-1.2.0-py310_0")
}

func TestDistStrNoChannelFallsBackToBuildNumber(t *testing.T) {
	r := Ref{Name: "numpy", Version: "1.2.0", BuildNumber: 3}
	assert.Equal(t, r.DistStrNoChannel(), "numpy-1.2.0-3")
}

func TestTarballBasenamePrefersExplicitFilename(t *testing.T) {
	r := Ref{Name: "numpy", Version: "1.2.0", BuildString: "0", Filename: "numpy-1.2.0-0.tar.bz2"}
	assert.Equal(t, r.TarballBasename(".tar.bz2"), "numpy-1.2.0-0.tar.bz2")

	r2 := Ref{Name: "numpy", Version: "1.2.0", BuildString: "0"}
	assert.Equal(t, r2.TarballBasename(".tar.bz2"), "numpy-1.2.0-0.tar.bz2")
}

func TestParseRefSplitsChannelSubdirAndDistName(t *testing.T) {
	ref, err := ParseRef("https://repo.example.com/main/linux-64/numpy-1.2.0-py310_0.tar.bz2", ".tar.bz2")
	assert.NilError(t, err)
	assert.Equal(t, ref.Channel, "main")
	assert.Equal(t, ref.Subdir, "linux-64")
	assert.Equal(t, ref.Name, "numpy")
	assert.Equal(t, ref.Version, "1.2.0")
	assert.Equal(t, ref.BuildString, "py310_0")
	assert.Equal(t, ref.Filename, "numpy-1.2.0-py310_0.tar.bz2")
}

func TestParseRefHandlesHyphenatedPackageNames(t *testing.T) {
	ref, err := ParseRef("https://repo.example.com/main/linux-64/scikit-learn-1.0.2-py310_0.tar.bz2", ".tar.bz2")
	assert.NilError(t, err)
	assert.Equal(t, ref.Name, "scikit-learn")
	assert.Equal(t, ref.Version, "1.0.2")
	assert.Equal(t, ref.BuildString, "py310_0")
}

func TestMatchSpecMatchesOnlyNonEmptyFields(t *testing.T) {
	ref := Ref{Channel: "main", Name: "numpy", Version: "1.2.0", BuildString: "py310_0"}

	assert.Assert(t, (MatchSpec{Name: "numpy"}).Matches(ref))
	assert.Assert(t, !(MatchSpec{Name: "scipy"}).Matches(ref))
	assert.Assert(t, (MatchSpec{Version: "1.*"}).Matches(ref))
	assert.Assert(t, (MatchSpec{}).Matches(ref))
}

func TestMatchSpecUnparseablePatternFallsBackToLiteralMatch(t *testing.T) {
	ref := Ref{Name: "["}
	assert.Assert(t, (MatchSpec{Name: "["}).Matches(ref))
	assert.Assert(t, !(MatchSpec{Name: "]"}).Matches(ref))
}

func TestForRefBuildsExactQueryFromIdentityOnly(t *testing.T) {
	ref := Ref{Channel: "main", Name: "numpy", Version: "1.2.0", BuildString: "py310_0", URL: "http://ignored"}
	q := ForRef(ref)
	assert.Assert(t, q.Exact != nil)
	assert.Assert(t, q.Spec == nil)
	assert.Equal(t, q.Exact.URL, "")
}
