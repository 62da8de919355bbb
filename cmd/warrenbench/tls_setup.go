package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc/credentials"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/security"
)

// enrollTimeout bounds the one-shot bootstrap dial an Agent started with a
// join token makes against the Coordinator's insecure enroll listener at
// startup.
const enrollTimeout = 30 * time.Second

// sansForBindAddr splits a "host:port" bind address into the DNS name or IP
// SAN lists IssueNodeCertificate expects. A literal IP address is recorded
// as an IP SAN and a hostname as a DNS SAN. The "0.0.0.0"/"::"/"" wildcards,
// or an address that does not split, yield "localhost" as a DNS SAN plus
// 127.0.0.1 as an IP SAN, so the issued certificate still verifies when a
// peer dials the loopback address.
func sansForBindAddr(bindAddr string) ([]string, []net.IP) {
	host, _, err := net.SplitHostPort(bindAddr)
	if err != nil || host == "" || host == "0.0.0.0" || host == "::" {
		return []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1")}
	}
	if ip := net.ParseIP(host); ip != nil {
		return nil, []net.IP{ip}
	}
	return []string{host}, nil
}

// nodeCredentials builds the mTLS server credential (requiring the peer to
// present a certificate signed by cert's CA) and client credential
// (presenting this node's own certificate) a CertAuthority-issued
// EnrollCertificate is good for, both backed by the same key pair.
func nodeCredentials(mat *benchtypes.EnrollCertificate) (server, client credentials.TransportCredentials, err error) {
	cert, pool, err := security.DecodeCertificate(mat.CertPEM, mat.KeyPEM, mat.CAPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("tls setup: decode enrolled certificate: %w", err)
	}

	server = credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	})
	client = credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	})
	return server, client, nil
}

// enrollWithCoordinator dials the Coordinator's insecure enroll listener,
// trades joinToken for a certificate issued to role/id, and returns the
// mTLS server/client credentials built from it. An Agent started with
// --join-token calls this once at startup, before dialing or listening on
// anything else; Workers never call it.
func enrollWithCoordinator(enrollAddr, joinToken, role, id string, dnsNames []string, ipAddresses []net.IP) (server, client credentials.TransportCredentials, err error) {
	conn, err := bus.Dial(enrollAddr, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("enroll: dial %s: %w", enrollAddr, err)
	}
	defer conn.Close()

	client0 := bus.NewBusClient(conn)
	op := benchtypes.Operation{
		Kind: benchtypes.OpEnroll,
		Enroll: &benchtypes.EnrollPayload{
			JoinToken:   joinToken,
			Role:        role,
			ID:          id,
			DNSNames:    dnsNames,
			IPAddresses: ipAddresses,
		},
	}
	env := bus.NewOperationEnvelope(role+"-"+id, "C", op)

	ctx, cancel := context.WithTimeout(context.Background(), enrollTimeout)
	defer cancel()
	out, err := client0.Dispatch(ctx, env)
	if err != nil {
		return nil, nil, fmt.Errorf("enroll: dispatch: %w", err)
	}
	if out.Response == nil || !out.Response.AllSuccess() || out.Response.EnrollCert == nil {
		return nil, nil, fmt.Errorf("enroll: %s %s rejected by coordinator", role, id)
	}

	return nodeCredentials(out.Response.EnrollCert)
}
