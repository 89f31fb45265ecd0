package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUnpack_FiltersToImages(t *testing.T) {
	archive := buildZip(t, map[string][]byte{
		"batch1/cheque_001.jpg":      []byte("jpeg bytes"),
		"batch1/cheque_002.PNG":      []byte("png bytes"),
		"batch2/cheque_003.tiff":     []byte("tiff bytes"),
		"batch1/notes.txt":           []byte("not an image"),
		"manifest.csv":               []byte("a,b"),
		"__MACOSX/batch1/cheque.jpg": []byte("resource fork"),
		"batch1/.DS_Store":           []byte("junk"),
	})

	units, err := Unpack([][]byte{archive})
	require.NoError(t, err)
	require.Len(t, units, 3)

	byPath := map[string]string{}
	for _, u := range units {
		byPath[u.Path] = u.ContentType
	}
	assert.Equal(t, "image/jpeg", byPath["batch1/cheque_001.jpg"])
	assert.Equal(t, "image/png", byPath["batch1/cheque_002.PNG"])
	assert.Equal(t, "image/tiff", byPath["batch2/cheque_003.tiff"])
}

func TestUnpack_ReadsEntryContent(t *testing.T) {
	archive := buildZip(t, map[string][]byte{
		"cheque.jpg": []byte("raw scan bytes"),
	})

	units, err := Unpack([][]byte{archive})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []byte("raw scan bytes"), units[0].Data)
}

func TestUnpack_MultipleArchives(t *testing.T) {
	first := buildZip(t, map[string][]byte{"a/one.jpg": []byte("1")})
	second := buildZip(t, map[string][]byte{"b/two.png": []byte("2")})

	units, err := Unpack([][]byte{first, second})
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestUnpack_CorruptArchiveFailsWholeBatch(t *testing.T) {
	good := buildZip(t, map[string][]byte{"a/one.jpg": []byte("1")})

	_, err := Unpack([][]byte{good, []byte("definitely not a zip")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive 2")
}

func TestUnpack_EmptyInput(t *testing.T) {
	units, err := Unpack(nil)
	require.NoError(t, err)
	assert.Empty(t, units)
}
