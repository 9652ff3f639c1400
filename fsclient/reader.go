package fsclient

import (
	"context"
	"io"
	"iter"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsvalue"
)

// GetAll is the primary non-transactional Document Reader: one
// BatchGetDocuments call for an arbitrary set of fully qualified document
// names, returned in the same order as requested regardless of the order
// the server streams responses in.
func GetAll(ctx context.Context, c *Client, documentNames []string, fieldMask ...string) ([]DocumentSnapshot, error) {
	req := &pb.BatchGetDocumentsRequest{Database: c.databaseName, Documents: documentNames}
	if len(fieldMask) > 0 {
		req.Mask = &pb.DocumentMask{FieldPaths: fieldMask}
	}

	stream, err := c.rpc.BatchGetDocuments(ctx, req)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]DocumentSnapshot, len(documentNames))
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			_, wrapped := fserrors.FromGRPCStatus(err)
			return nil, wrapped
		}
		if doc := resp.GetFound(); doc != nil {
			var readTime = resp.GetReadTime().AsTime()
			byName[doc.GetName()] = DocumentSnapshot{
				Name: doc.GetName(), Exists: true,
				Fields:   fsvalue.DecodeMap(doc.GetFields(), c.settings.decodeOptions()),
				ReadTime: readTime,
			}
		} else if missing := resp.GetMissing(); missing != "" {
			byName[missing] = DocumentSnapshot{Name: missing, Exists: false, ReadTime: resp.GetReadTime().AsTime()}
		}
	}

	out := make([]DocumentSnapshot, len(documentNames))
	for i, name := range documentNames {
		out[i] = byName[name]
	}
	return out, nil
}

// ListDocuments streams a collection's documents. Paging
// against the wire API is handled beneath fsrpc.ListDocumentsStream; this
// only flattens it into iter.Seq2, materializing one document at a time.
func ListDocuments(ctx context.Context, c *Client, parentPath, collectionID string, opts fsvalue.DecodeOptions) iter.Seq2[DocumentSnapshot, error] {
	return func(yield func(DocumentSnapshot, error) bool) {
		req := &pb.ListDocumentsRequest{Parent: parentPath, CollectionId: collectionID}
		stream, err := c.rpc.ListDocuments(ctx, req)
		if err != nil {
			yield(DocumentSnapshot{}, err)
			return
		}
		for {
			doc, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				_, wrapped := fserrors.FromGRPCStatus(err)
				yield(DocumentSnapshot{}, wrapped)
				return
			}
			snap := DocumentSnapshot{Name: doc.GetName(), Exists: true, Fields: fsvalue.DecodeMap(doc.GetFields(), opts)}
			if !yield(snap, nil) {
				return
			}
		}
	}
}

// ListCollectionIds enumerates the collection IDs directly under parentPath.
func ListCollectionIds(ctx context.Context, c *Client, parentPath string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := &pb.ListCollectionIdsRequest{Parent: parentPath}
		stream, err := c.rpc.ListCollectionIds(ctx, req)
		if err != nil {
			yield("", err)
			return
		}
		for {
			id, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				_, wrapped := fserrors.FromGRPCStatus(err)
				yield("", wrapped)
				return
			}
			if !yield(id, nil) {
				return
			}
		}
	}
}
