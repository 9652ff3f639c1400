// Package fsclient assembles the core's query, write, transaction, bulk
// writer, and bundle engines behind a single settings-driven facade.
package fsclient

import (
	"time"

	"github.com/dataloom-dev/fsadmin/fsrpc"
	"github.com/dataloom-dev/fsadmin/fsvalue"
)

const defaultDatabaseID = "(default)"
const defaultMaxAttempts = 5

// Settings configures a Client: the project/database it talks to, host
// override (emulator), decode policy, and transaction attempt default.
type Settings struct {
	ProjectID   string `env:"GOOGLE_CLOUD_PROJECT"`
	DatabaseID  string `env:"FIRESTORE_DATABASE_ID" envDefault:"(default)"`
	Host        string `env:"FIRESTORE_EMULATOR_HOST"`
	SSL         bool   `env:"FIRESTORE_SSL" envDefault:"true"`
	UseBigInt   bool   `env:"FIRESTORE_USE_BIGINT" envDefault:"false"`
	MaxAttempts int    `env:"FIRESTORE_MAX_ATTEMPTS" envDefault:"5"`
}

func (s Settings) decodeOptions() fsvalue.DecodeOptions {
	return fsvalue.DecodeOptions{UseBigInt: s.UseBigInt}
}

// emulatorMode reports whether Host was supplied; when it is, requests are
// routed to the emulator and no credentials are acquired.
func (s Settings) emulatorMode() bool {
	return s.Host != ""
}

// Converter binds a Go type to the wire field-map shape.
type Converter[T any] interface {
	ToFields(v T) (map[string]fsvalue.Value, error)
	FromFields(fields map[string]fsvalue.Value) (T, error)
}

// DocumentSnapshot is a decoded document read outside a transaction.
type DocumentSnapshot struct {
	Name     string
	Exists   bool
	Fields   map[string]fsvalue.Value
	ReadTime time.Time
}

// QueryDocumentSnapshot is a DocumentSnapshot produced by a query, always
// existing.
type QueryDocumentSnapshot struct {
	DocumentSnapshot
}

// DocumentRef addresses one document and binds it to a Converter.
type DocumentRef[T any] struct {
	client *Client
	path   string // collection/doc/collection/doc...
	conv   Converter[T]
}

// CollectionRef addresses one collection and binds it to a Converter.
type CollectionRef[T any] struct {
	client *Client
	path   string
	conv   Converter[T]
}

// Client is the façade wiring fsrpc.Client to the query/write/transaction/
// bulk-writer/bundle engines under one settings-derived root path.
type Client struct {
	rpc      fsrpc.Client
	settings Settings

	databaseName string // "projects/P/databases/D"
	databaseRoot string // "projects/P/databases/D/documents"
}
