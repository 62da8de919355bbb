package bus

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a client connection to a Bus listener at addr. If creds is nil
// the connection is unencrypted: Worker <-> Agent loopback traffic always
// dials this way, and so does an Agent started without a join token when it
// reports to the Coordinator. Enrolled Agents and the Coordinator pass mTLS
// credentials (see pkg/security).
func Dial(addr string, creds credentials.TransportCredentials) (*grpc.ClientConn, error) {
	transportCreds := insecure.NewCredentials()
	if creds != nil {
		transportCreds = creds
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(transportCreds),
		grpc.WithDefaultCallOptions(ForceJSONCodec()),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: dial %s: %w", addr, err)
	}
	return conn, nil
}

// NewServer constructs a *grpc.Server configured with the JSON codec and,
// when creds is non-nil, mTLS transport credentials.
func NewServer(creds credentials.TransportCredentials) *grpc.Server {
	opts := []grpc.ServerOption{ServerCodecOption()}
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}
	return grpc.NewServer(opts...)
}
