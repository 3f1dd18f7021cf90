package pkgfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		filename string
		project  string
		version  string
		kind     Kind
	}{
		{"Twisted-11.0.0.tar.bz2", "Twisted", "11.0.0", KindSdist},
		{"pep8-0.6.0.zip", "pep8", "0.6.0", KindSdist},
		{"foobar-1.0.tar.gz", "foobar", "1.0", KindSdist},
		{"foo-bar-1.0.tar.gz", "foo-bar", "1.0", KindSdist},
		{"test-test-2.0.1.tar.gz", "test-test", "2.0.1", KindSdist},
		{"package-1.2.3.tgz", "package", "1.2.3", KindSdist},
		{"wheel-0.22.0-py2.py3-none-any.whl", "wheel", "0.22.0", KindWheel},
		{"test-2.0-py2.py3-none-any.whl", "test", "2.0", KindWheel},
		{"foo_bar-1.0-py2.7.egg", "foo_bar", "1.0", KindEgg},
		{"greenlet-0.3.4-py3.1-win-x86_64.egg", "greenlet", "0.3.4", KindEgg},
		{"foo_bar-1.0.tar.gz.asc", "foo_bar", "1.0", KindSignature},
		{"test-2.0-py2.py3-none-any.whl.asc", "test", "2.0", KindSignature},
		{"FooBar-1.1-linux.zip", "FooBar", "1.1", KindSdist},
	}

	for _, tt := range tests {
		info, err := Parse(tt.filename)
		require.NoError(t, err, "Parse(%q)", tt.filename)
		assert.Equal(t, tt.project, info.Project, "project of %q", tt.filename)
		assert.Equal(t, tt.version, info.Version, "version of %q", tt.filename)
		assert.Equal(t, tt.kind, info.Kind, "kind of %q", tt.filename)
	}
}

func TestParseInvalid(t *testing.T) {
	invalid := []string{
		"",
		"foo.whl",
		"foo-1.0",
		"foo-1.0.exe",
		"no-version.zip",
		"1.0.tar.gz",
		"-1.0.tar.gz",
		"sub/foo-1.0.tar.gz",
		"sub\\foo-1.0.tar.gz",
		"readme.txt",
		"foo.asc",
	}

	for _, filename := range invalid {
		info, err := Parse(filename)
		assert.Error(t, err, "Parse(%q)", filename)
		assert.Nil(t, info)

		var badName *BadFilenameError
		assert.ErrorAs(t, err, &badName)
	}
}

func TestParseSuffixCaseInsensitive(t *testing.T) {
	info, err := Parse("Foo-1.0.TAR.GZ")
	require.NoError(t, err)
	assert.Equal(t, "Foo", info.Project)
	assert.Equal(t, "1.0", info.Version)
	assert.Equal(t, KindSdist, info.Kind)
}
