package fsbundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsquery"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"google.golang.org/protobuf/encoding/protojson"
)

type metadataRecord struct {
	Metadata bundleMetadataJSON `json:"metadata"`
}

type bundleMetadataJSON struct {
	ID             string `json:"id"`
	CreateTime     string `json:"createTime"`
	Version        int    `json:"version"`
	TotalDocuments int    `json:"totalDocuments"`
	TotalBytes     int    `json:"totalBytes"`
}

type documentMetadataRecord struct {
	DocumentMetadata documentMetadataJSON `json:"documentMetadata"`
}

type documentMetadataJSON struct {
	Name     string   `json:"name"`
	ReadTime string   `json:"readTime"`
	Exists   bool     `json:"exists"`
	Queries  []string `json:"queries"`
}

type documentRecord struct {
	Document json.RawMessage `json:"document"`
}

type namedQueryRecord struct {
	NamedQuery namedQueryJSON `json:"namedQuery"`
}

type namedQueryJSON struct {
	Name         string           `json:"name"`
	BundledQuery bundledQueryJSON `json:"bundledQuery"`
	ReadTime     string           `json:"readTime"`
}

type bundledQueryJSON struct {
	Parent          string          `json:"parent"`
	StructuredQuery json.RawMessage `json:"structuredQuery"`
	LimitType       string          `json:"limitType"`
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		t = time.Unix(0, 0).UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// appendRecord writes one length-prefixed JSON element to buf, returning the
// number of payload bytes appended (excluding the length prefix itself).
func appendRecord(buf *bytes.Buffer, v any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(buf, "%d", len(payload))
	buf.Write(payload)
	return len(payload), nil
}

// Build renders the accumulated documents and named queries into the
// length-prefixed element stream. createTime stamps the bundle
// metadata record.
func (b *Builder) Build(createTime time.Time) ([]byte, error) {
	var buf bytes.Buffer
	totalBytes := 0

	for _, name := range b.docOrder {
		e := b.docs[name]
		n, err := appendRecord(&buf, documentMetadataRecord{DocumentMetadata: documentMetadataJSON{
			Name:     e.name,
			ReadTime: rfc3339(e.readTime),
			Exists:   e.exists,
			Queries:  e.sortedQueryNames(),
		}})
		if err != nil {
			return nil, err
		}
		totalBytes += n

		if !e.exists {
			continue
		}
		doc := &pb.Document{Name: e.name, Fields: fsvalue.EncodeMap(e.fields)}
		docJSON, err := protojson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		n, err = appendRecord(&buf, documentRecord{Document: docJSON})
		if err != nil {
			return nil, err
		}
		totalBytes += n
	}

	for _, name := range b.queryOrder {
		e := b.queries[name]
		sq, err := e.query.ToStructuredQuery()
		if err != nil {
			return nil, err
		}
		sqJSON, err := protojson.Marshal(sq)
		if err != nil {
			return nil, err
		}
		limitType := "FIRST"
		if e.query.LimitType == fsquery.LimitLast {
			limitType = "LAST"
		}
		n, err := appendRecord(&buf, namedQueryRecord{NamedQuery: namedQueryJSON{
			Name: e.name,
			BundledQuery: bundledQueryJSON{
				Parent:          e.parentPath,
				StructuredQuery: sqJSON,
				LimitType:       limitType,
			},
			ReadTime: rfc3339(e.readTime),
		}})
		if err != nil {
			return nil, err
		}
		totalBytes += n
	}

	var out bytes.Buffer
	if _, err := appendRecord(&out, metadataRecord{Metadata: bundleMetadataJSON{
		ID:             b.id,
		CreateTime:     rfc3339(createTime),
		Version:        bundleVersion,
		TotalDocuments: len(b.docOrder),
		TotalBytes:     totalBytes,
	}}); err != nil {
		return nil, err
	}
	out.Write(buf.Bytes())
	return out.Bytes(), nil
}
