package security

import (
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitializedCA(t *testing.T) *CertAuthority {
	t.Helper()
	ca := NewCertAuthority()
	require.NoError(t, ca.Initialize())
	return ca
}

func TestInitializeCA(t *testing.T) {
	ca := newInitializedCA(t)

	assert.True(t, ca.IsInitialized())
	require.NotNil(t, ca.rootCert)
	require.NotNil(t, ca.rootKey)
	assert.True(t, ca.rootCert.IsCA)

	expectedExpiry := time.Now().Add(rootCAValidity)
	assert.WithinDuration(t, expectedExpiry, ca.rootCert.NotAfter, time.Hour)
}

func TestIssueNodeCertificate(t *testing.T) {
	ca := newInitializedCA(t)

	tests := []struct {
		name   string
		nodeID string
		role   string
	}{
		{"agent certificate", "A1", "agent"},
		{"worker certificate", "A1.W2", "worker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := ca.IssueNodeCertificate(tt.nodeID, tt.role, []string{}, []net.IP{})
			require.NoError(t, err)
			require.NotNil(t, cert.Leaf)

			assert.Equal(t, tt.role+"-"+tt.nodeID, cert.Leaf.Subject.CommonName)

			expectedExpiry := time.Now().Add(nodeCertValidity)
			assert.WithinDuration(t, expectedExpiry, cert.Leaf.NotAfter, time.Hour)

			assert.NotZero(t, cert.Leaf.KeyUsage&x509.KeyUsageDigitalSignature)
			assert.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageClientAuth)
			assert.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
		})
	}
}

func TestIssueClientCertificate(t *testing.T) {
	ca := newInitializedCA(t)

	clientID := "operator@laptop"
	cert, err := ca.IssueClientCertificate(clientID)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)

	assert.Equal(t, "cli-"+clientID, cert.Leaf.Subject.CommonName)
	assert.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageClientAuth)
	assert.NotContains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
}

func TestVerifyCertificate(t *testing.T) {
	ca := newInitializedCA(t)

	cert, err := ca.IssueNodeCertificate("A1.W0", "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	assert.NoError(t, ca.VerifyCertificate(cert.Leaf))
}

func TestVerifyCertificateRejectsForeignCA(t *testing.T) {
	ca := newInitializedCA(t)
	other := newInitializedCA(t)

	cert, err := other.IssueNodeCertificate("A1.W0", "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	assert.Error(t, ca.VerifyCertificate(cert.Leaf))
}

func TestGetRootCACert(t *testing.T) {
	ca := newInitializedCA(t)

	rootCertDER := ca.GetRootCACert()
	require.NotNil(t, rootCertDER)

	parsedCert, err := x509.ParseCertificate(rootCertDER)
	require.NoError(t, err)
	assert.True(t, parsedCert.Equal(ca.rootCert))
}

func TestCertCache(t *testing.T) {
	ca := newInitializedCA(t)

	nodeID := "A2.W1"
	_, err := ca.IssueNodeCertificate(nodeID, "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	cached, exists := ca.GetCachedCert(nodeID)
	require.True(t, exists)
	require.NotNil(t, cached)
	assert.Equal(t, "worker-"+nodeID, cached.Cert.Subject.CommonName)
}

func TestIssueNodeCertificateRequiresInitializedCA(t *testing.T) {
	ca := NewCertAuthority()

	_, err := ca.IssueNodeCertificate("A1", "agent", nil, nil)
	assert.Error(t, err)
}
