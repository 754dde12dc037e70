package wheelmeta

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestClassifyRecognizesEachDistributionShape(t *testing.T) {
	cases := []struct {
		name     string
		wantKind Kind
		wantBase string
	}{
		{"numpy-1.2.0.dist-info", KindWheel, "numpy-1.2.0"},
		{"numpy.egg-link", KindEggLink, "numpy"},
		{"numpy-1.2.0.egg-info", KindEggInfoDir, "numpy-1.2.0"},
		{"numpy-1.2.0.egg", KindEgg, "numpy-1.2.0"},
		{"README.txt", KindIgnored, ""},
	}
	for _, c := range cases {
		kind, base := classify(c.name)
		assert.Equal(t, kind, c.wantKind)
		assert.Equal(t, base, c.wantBase)
	}
}

func TestScanParsesWheelMetadataIntoRefs(t *testing.T) {
	site := t.TempDir()
	distInfo := filepath.Join(site, "numpy-1.2.0.dist-info")
	assert.NilError(t, os.MkdirAll(distInfo, 0775))
	metadata := "Metadata-Version: 2.1\nName: numpy\nVersion: 1.2.0\nRequires-Dist: six (>=1.0)\nRequires-Dist: pytest (>=6.0); extra == 'test'\n\n"
	assert.NilError(t, os.WriteFile(filepath.Join(distInfo, "METADATA"), []byte(metadata), 0644))

	assert.NilError(t, os.MkdirAll(filepath.Join(site, "not-a-package"), 0775))

	a := New(site, "3.10")
	refs, err := a.Scan()
	assert.NilError(t, err)
	assert.Equal(t, len(refs), 1)
	assert.Equal(t, refs[0].Name, "numpy")
	assert.Equal(t, refs[0].Version, "1.2.0")
	assert.Equal(t, refs[0].Channel, ChannelPyPI)
}

func TestScanFollowsEggLinkToDevelopChannel(t *testing.T) {
	site := t.TempDir()
	checkout := t.TempDir()
	eggInfo := filepath.Join(checkout, "mypkg.egg-info")
	assert.NilError(t, os.MkdirAll(eggInfo, 0775))
	assert.NilError(t, os.WriteFile(filepath.Join(eggInfo, "PKG-INFO"), []byte("Name: mypkg\nVersion: 0.1.0\n\n"), 0644))
	assert.NilError(t, os.WriteFile(filepath.Join(site, "mypkg.egg-link"), []byte(checkout+"\n"), 0644))

	a := New(site, "3.10")
	refs, err := a.Scan()
	assert.NilError(t, err)
	assert.Equal(t, len(refs), 1)
	assert.Equal(t, refs[0].Channel, ChannelDevelop)
	assert.Equal(t, refs[0].Name, "mypkg")
}

func TestParseRequirementSplitsNameExtrasConstraintsAndMarker(t *testing.T) {
	req := ParseRequirement("requests[security,socks] (>=2.0,<3.0); python_version >= '3.6'")
	assert.Equal(t, req.Name, "requests")
	assert.DeepEqual(t, req.Extras, []string{"security", "socks"})
	assert.Equal(t, req.Constraints, ">=2.0,<3.0")
	assert.Equal(t, req.Marker, "python_version >= '3.6'")
}

func TestParseRequirementHandlesBareName(t *testing.T) {
	req := ParseRequirement("six")
	assert.Equal(t, req.Name, "six")
	assert.Equal(t, len(req.Extras), 0)
	assert.Equal(t, req.Constraints, "")
}

func TestMarkerSatisfied(t *testing.T) {
	assert.Assert(t, MarkerSatisfied("", "3.10"))
	assert.Assert(t, MarkerSatisfied("os_name == 'posix'", "3.10"))
	assert.Assert(t, MarkerSatisfied("python_version >= '3.10'", "3.10"))
	assert.Assert(t, !MarkerSatisfied("python_version >= '3.11'", "3.10"))
}
