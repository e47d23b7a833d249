package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = body
	}
	return out
}

func TestPackage(t *testing.T) {
	b1 := []byte("id,name\n1,Ada\n")
	b2 := []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0xFF}

	data, err := Package([]Entry{{Name: "a.csv", Data: b1}, {Name: "b.xlsx", Data: b2}})
	require.NoError(t, err)

	files := readZip(t, data)
	require.Len(t, files, 2)
	assert.Equal(t, b1, files["a.csv"])
	assert.Equal(t, b2, files["b.xlsx"])
}

func TestPackageKeepsOrder(t *testing.T) {
	data, err := Package([]Entry{{Name: "z.csv"}, {Name: "a.csv"}, {Name: "m.csv"}})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"z.csv", "a.csv", "m.csv"}, names)
}

func TestPackageEmpty(t *testing.T) {
	data, err := Package(nil)
	assert.ErrorIs(t, err, ErrEmptyPackage)
	assert.Nil(t, data)
}

func TestPackageDuplicateNames(t *testing.T) {
	data, err := Package([]Entry{
		{Name: "a.csv", Data: []byte("1")},
		{Name: "a.csv", Data: []byte("2")},
	})
	require.NoError(t, err)

	files := readZip(t, data)
	assert.Equal(t, []byte("1"), files["a.csv"])
	assert.Equal(t, []byte("2"), files["a (2).csv"])
}

func TestUniqueNames(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"distinct", []string{"a.csv", "b.csv"}, []string{"a.csv", "b.csv"}},
		{"repeats", []string{"a.csv", "a.csv", "a.csv"}, []string{"a.csv", "a (2).csv", "a (3).csv"}},
		{"skips taken", []string{"a.csv", "a.csv", "a (2).csv"}, []string{"a.csv", "a (3).csv", "a (2).csv"}},
		{"no extension", []string{"data", "data"}, []string{"data", "data (2)"}},
		{"strips directories", []string{"../../etc/x.csv", `C:\tmp\x.csv`}, []string{"x.csv", "x (2).csv"}},
		{"blank", []string{"", ".."}, []string{"file", "file (2)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UniqueNames(tt.in))
		})
	}
}
