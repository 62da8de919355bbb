package security

import (
	"fmt"
	"net"
)

// Enroller is the Coordinator-side handler for the join-token enrollment
// handshake: it trades a valid join token for a freshly issued node
// certificate, so an Agent or Worker can upgrade from the insecure
// bootstrap channel to mTLS before sending or receiving anything else.
type Enroller struct {
	ca        *CertAuthority
	validator *JoinTokenValidator
}

// NewEnroller builds an Enroller backed by ca, accepting only the given
// join token.
func NewEnroller(ca *CertAuthority, joinToken string) *Enroller {
	return &Enroller{ca: ca, validator: NewJoinTokenValidator(joinToken)}
}

// Issue validates token and, if it matches, issues a node certificate for
// role/id and returns it PEM-encoded alongside the CA certificate, ready to
// send back over the enrollment channel.
func (e *Enroller) Issue(token, role, id string, dnsNames []string, ipAddresses []net.IP) (certPEM, keyPEM, caPEM []byte, err error) {
	if !e.validator.Validate(token) {
		return nil, nil, nil, fmt.Errorf("security: enroll rejected for %s %s: invalid join token", role, id)
	}

	cert, err := e.ca.IssueNodeCertificate(id, role, dnsNames, ipAddresses)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("security: enroll %s %s: %w", role, id, err)
	}

	return EncodeCertificate(cert, e.ca.GetRootCACert())
}
