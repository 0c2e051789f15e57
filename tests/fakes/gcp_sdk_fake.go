package fakes

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager client keyed by
// full version resource names (projects/P/secrets/S/versions/V).
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex
	// Versions maps version resource names to payloads
	Versions map[string][]byte
	// Errors maps version resource names to errors to return
	Errors map[string]error

	requested []string
	closed    bool
}

// NewFakeGCPSecretManagerClient creates an empty fake.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretVersion stores value under projects/<project>/secrets/<secret>/versions/<version>.
// The "latest" alias is stored as well when version is not "latest".
func (f *FakeGCPSecretManagerClient) AddSecretVersion(project, secret, version, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := fmt.Sprintf("projects/%s/secrets/%s/versions/", project, secret)
	f.Versions[base+version] = []byte(value)
	f.Versions[base+"latest"] = []byte(value)
}

// AddError makes access to resource fail with err.
func (f *FakeGCPSecretManagerClient) AddError(resource string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[resource] = err
}

// Requested returns the resource names accessed so far.
func (f *FakeGCPSecretManagerClient) Requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

// Closed reports whether Close was called.
func (f *FakeGCPSecretManagerClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// AccessSecretVersion mocks the AccessSecretVersion operation.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, req.GetName())

	if err, ok := f.Errors[req.GetName()]; ok {
		return nil, err
	}
	data, ok := f.Versions[req.GetName()]
	if !ok {
		return nil, GCPNotFoundError(req.GetName())
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

// Close records that the client was closed.
func (f *FakeGCPSecretManagerClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// GCPNotFoundError creates a gRPC NotFound error.
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", resourceName)
}

// GCPPermissionDeniedError creates a gRPC PermissionDenied error.
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}

// GCPUnauthenticatedError creates a gRPC Unauthenticated error.
func GCPUnauthenticatedError(message string) error {
	return status.Error(codes.Unauthenticated, message)
}

// GCPResourceExhaustedError creates a gRPC ResourceExhausted error.
func GCPResourceExhaustedError() error {
	return status.Errorf(codes.ResourceExhausted, "Quota exceeded")
}
