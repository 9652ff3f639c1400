package fsclient

import (
	"context"
	"fmt"

	"cloud.google.com/go/compute/metadata"
	env "github.com/caarlos0/env/v6"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func noTLSDialOption() grpc.DialOption {
	return grpc.WithTransportCredentials(insecure.NewCredentials())
}

// LoadSettings loads Settings from the process environment via env-tag
// struct binding. override, when non-empty, is used in place of the real
// environment for test isolation instead of mutating os.Environ.
func LoadSettings(override map[string]string) (Settings, error) {
	var s Settings
	var opts []env.Options
	if len(override) > 0 {
		opts = append(opts, env.Options{Environment: override})
	}
	if err := env.Parse(&s, opts...); err != nil {
		return Settings{}, fserrors.New(fserrors.CodeInvalidArgument, "loading firestore settings: %s", err.Error())
	}
	if s.DatabaseID == "" {
		s.DatabaseID = defaultDatabaseID
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = defaultMaxAttempts
	}
	return s, nil
}

// resolveProjectID auto-discovers the project id from the compute metadata
// server when Settings didn't supply one and the client isn't running
// against the emulator, probing the environment before failing closed.
func resolveProjectID(ctx context.Context, s Settings) (string, error) {
	if s.ProjectID != "" {
		return s.ProjectID, nil
	}
	if s.emulatorMode() {
		return "", fserrors.New(fserrors.CodeInvalidArgument, "projectId is required in emulator mode")
	}
	id, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return "", fserrors.New(fserrors.CodeInvalidArgument, "projectId not set and metadata server unavailable: %s", err.Error())
	}
	return id, nil
}

// NewClient dials the Firestore v1 API through fsrpc.NewVKitClient — routed
// to the emulator host unauthenticated when Settings.Host is set, otherwise
// through normal ADC credentials — and wires it to databaseRoot/Name.
func NewClient(ctx context.Context, s Settings, extraOpts ...option.ClientOption) (*Client, error) {
	projectID, err := resolveProjectID(ctx, s)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption(nil), extraOpts...)
	if s.emulatorMode() {
		opts = append(opts,
			option.WithEndpoint(s.Host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(noTLSDialOption()),
		)
	}

	rpc, err := fsrpc.NewVKitClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return newClientWithRPC(rpc, projectID, s), nil
}

// NewClientWithRPC wires an already-constructed fsrpc.Client directly,
// bypassing credential/transport setup entirely — the seam tests use to
// substitute fsrpcfake.Client.
func NewClientWithRPC(rpc fsrpc.Client, projectID string, s Settings) *Client {
	return newClientWithRPC(rpc, projectID, s)
}

func newClientWithRPC(rpc fsrpc.Client, projectID string, s Settings) *Client {
	if s.DatabaseID == "" {
		s.DatabaseID = defaultDatabaseID
	}
	name := fmt.Sprintf("projects/%s/databases/%s", projectID, s.DatabaseID)
	return &Client{
		rpc:          rpc,
		settings:     s,
		databaseName: name,
		databaseRoot: name + "/documents",
	}
}

// Close releases the underlying RPC client.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// DatabaseRoot returns "projects/P/databases/D/documents".
func (c *Client) DatabaseRoot() string { return c.databaseRoot }

// DatabaseName returns "projects/P/databases/D".
func (c *Client) DatabaseName() string { return c.databaseName }
