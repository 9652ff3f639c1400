package fsbundle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/dataloom-dev/fsadmin/fsquery"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readRecords parses the length-prefixed stream back into raw JSON objects,
// the way a bundle-consuming client would, to assert on structure without
// hand-parsing the wire format in every test.
func readRecords(t *testing.T, data []byte) []map[string]json.RawMessage {
	t.Helper()
	r := bufio.NewReader(bytes.NewReader(data))
	var out []map[string]json.RawMessage
	for {
		lengthStr, err := readDigits(r)
		if err != nil {
			break
		}
		n, err := strconv.Atoi(lengthStr)
		require.NoError(t, err)
		payload := make([]byte, n)
		_, err = io.ReadFull(r, payload)
		require.NoError(t, err)
		var rec map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(payload, &rec))
		out = append(out, rec)
	}
	return out
}

func readDigits(r *bufio.Reader) (string, error) {
	var digits []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if len(digits) > 0 {
				return string(digits), nil
			}
			return "", err
		}
		if b < '0' || b > '9' {
			r.UnreadByte()
			break
		}
		digits = append(digits, b)
	}
	if len(digits) == 0 {
		return "", bufio.ErrBufferFull
	}
	return string(digits), nil
}

func TestBuildEmitsMetadataFirst(t *testing.T) {
	b := New("bundle-1")
	b.AddDocument("projects/p/databases/(default)/documents/c/a", true, map[string]fsvalue.Value{"x": fsvalue.Int64(1)}, time.Unix(100, 0), "")

	out, err := b.Build(time.Unix(200, 0))
	require.NoError(t, err)

	recs := readRecords(t, out)
	require.GreaterOrEqual(t, len(recs), 2)
	_, ok := recs[0]["metadata"]
	assert.True(t, ok)
}

func TestDuplicateDocumentPathAccumulatesQueryNames(t *testing.T) {
	b := New("bundle-1")
	b.AddDocument("docs/a", true, map[string]fsvalue.Value{"x": fsvalue.Int64(1)}, time.Time{}, "q2")
	b.AddDocument("docs/a", true, map[string]fsvalue.Value{"x": fsvalue.Int64(1)}, time.Time{}, "q1")

	out, err := b.Build(time.Time{})
	require.NoError(t, err)
	recs := readRecords(t, out)

	var meta struct {
		DocumentMetadata struct {
			Queries []string `json:"queries"`
		} `json:"documentMetadata"`
	}
	require.NoError(t, json.Unmarshal(marshalRecord(t, recs[1]), &meta))
	assert.Equal(t, []string{"q1", "q2"}, meta.DocumentMetadata.Queries)
}

func marshalRecord(t *testing.T, rec map[string]json.RawMessage) []byte {
	t.Helper()
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	return b
}

func TestDuplicateNamedQueryRejected(t *testing.T) {
	b := New("bundle-1")
	q := fsquery.Query{ParentPath: "projects/p/databases/(default)/documents", CollectionID: "c"}
	require.NoError(t, b.AddNamedQuery("q1", "projects/p/databases/(default)/documents", q, time.Time{}))

	err := b.AddNamedQuery("q1", "projects/p/databases/(default)/documents", q, time.Time{})
	require.Error(t, err)
}

func TestTotalBytesExcludesMetadataRecord(t *testing.T) {
	b := New("bundle-1")
	b.AddDocument("docs/a", true, map[string]fsvalue.Value{"x": fsvalue.Int64(1)}, time.Time{}, "")

	out, err := b.Build(time.Time{})
	require.NoError(t, err)

	recs := readRecords(t, out)
	var meta struct {
		Metadata struct {
			TotalBytes int `json:"totalBytes"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(marshalRecord(t, recs[0]), &meta))
	assert.Greater(t, meta.Metadata.TotalBytes, 0)
	assert.Less(t, meta.Metadata.TotalBytes, len(out))
}
