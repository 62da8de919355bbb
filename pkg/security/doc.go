// Package security provides the mTLS plumbing for a Warrenbench run: an
// ephemeral CertAuthority the Coordinator generates fresh on every start, a
// join-token handshake (Enroller) Agents use to trade that
// token for a certificate over an insecure bootstrap connection, and the
// PEM encode/decode and rotation-check helpers around the certificates
// that come out of it. Nothing is persisted to disk between runs — a new
// Coordinator process means a new CA and every node re-enrolls.
package security
