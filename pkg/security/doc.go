/*
Package security provides cryptographic services for shuttle clusters.

This package implements three core security capabilities: secrets encryption using
AES-256-GCM, a Certificate Authority (CA) for mutual TLS (mTLS), and certificate
lifecycle management. Together, these components provide encryption for
sensitive data and authentication for the cluster connections that use
CA-issued certificates.

# Architecture

shuttle's security architecture is built on three pillars:

	┌─────────────────────────────────────────────────────────────┐
	│                    Security Architecture                    │
	└─────┬───────────────────────┬──────────────────┬────────────┘
	      │                       │                  │
	      ▼                       ▼                  ▼
	┌─────────────┐      ┌────────────────┐   ┌──────────────┐
	│   Secrets   │      │       CA       │   │ Certificate  │
	│ Encryption  │      │  (Root only)   │   │  Management  │
	└─────┬───────┘      └────────┬───────┘   └──────┬───────┘
	      │                       │                   │
	      ▼                       ▼                   ▼
	  AES-256-GCM         RSA 4096-bit          90-day node certs
	  User secrets        10-year validity      Renewal by reissue

## Cluster Encryption Key

The cluster encryption key is a 32-byte key derived with
DeriveKeyFromClusterID:

	clusterKey = SHA-256(clusterID)  // 32 bytes for AES-256

This key encrypts the CA private key before SaveToStore writes it (through
Encrypt and Decrypt). SecretsManager does not use it: it encrypts with the
key it was constructed with.

The key is held only in memory: pkg/coordgroup's NewManager derives it from
the coordinator's node ID and installs it with SetClusterEncryptionKey.

# Secrets Encryption

## SecretsManager

The SecretsManager encrypts and decrypts user secrets (API keys, passwords, etc.)
using AES-256 in Galois/Counter Mode (GCM), providing authenticated encryption:

	Plaintext → AES-256-GCM → Ciphertext + Authentication Tag
	                ↑
	            32-byte key

Key features:
  - Authenticated encryption (integrity + confidentiality)
  - Random nonce per encryption (no nonce reuse)
  - Fast performance (~100MB/s on modern CPUs)

## Encryption Process

 1. Generate random 12-byte nonce
 2. Encrypt plaintext with AES-256-GCM
 3. Prepend nonce to ciphertext
 4. Store combined bytes: [nonce || ciphertext || tag]

This ensures each secret has a unique nonce, preventing cryptographic attacks.

## Secret Storage

EncryptSecret returns the combined bytes to its caller. Nothing in this
module persists them: the store has no bucket for secrets.

Decryption reverses the process:

 1. Extract nonce (first 12 bytes)
 2. Extract ciphertext + tag (remaining bytes)
 3. Decrypt and verify authentication tag
 4. Return plaintext or error if tampered

# Certificate Authority

## Root CA

The CA uses a hierarchical structure with a long-lived root certificate:

	Root CA (self-signed)
	├── 10-year validity
	├── RSA 4096-bit key (high security)
	├── KeyUsage: CertSign, CRLSign
	└── Subject: CN=Warren Root CA, O=Warren Cluster

The root CA is created during cluster initialization and stored encrypted:

	Root Certificate: Stored in BoltDB (plaintext, public)
	Root Private Key: Stored in BoltDB (encrypted with cluster key)

## Node Certificates

The CA issues certificates for cluster nodes (coordinators and workers):

	Node Certificate
	├── 90-day validity
	├── RSA 2048-bit key (faster operations)
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ServerAuth, ClientAuth
	├── Subject: CN={role}-{nodeID}, O=Warren Cluster
	├── DNS Names: [node hostname]
	└── IP Addresses: [node IP]

Each certificate is unique to its node. Which connections actually use
these certificates is described under gRPC TLS Integration below.

## Client Certificates

IssueClientCertificate issues certificates for CLI clients:

	CLI Certificate
	├── 90-day validity
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ClientAuth
	└── Subject: CN=cli-{clientID}, O=Warren Cluster

pkg/client presents such a certificate when it finds one under
GetCertDir("cli", ""). Nothing in this module calls IssueClientCertificate.

# Usage Examples

## Creating a Secrets Manager

	import "github.com/shuttle-mr/shuttle/pkg/security"

	// Method 1: From raw key (32 bytes)
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		panic(err)
	}

	sm, err := security.NewSecretsManager(key)
	if err != nil {
		panic(err)
	}

	// Method 2: From password (key derived via SHA-256)
	sm, err := security.NewSecretsManagerFromPassword("my-cluster-secret")
	if err != nil {
		panic(err)
	}

## Encrypting and Decrypting Secrets

	// Encrypt a database password
	plaintext := []byte("super-secret-password")
	ciphertext, err := sm.EncryptSecret(plaintext)
	if err != nil {
		panic(err)
	}

	// Store ciphertext in database...

	// Later, decrypt the secret
	decrypted, err := sm.DecryptSecret(ciphertext)
	if err != nil {
		panic(err)  // Tampering detected or wrong key
	}

	fmt.Println(string(decrypted))  // "super-secret-password"

## Creating User Secrets

	// High-level API for creating secrets
	secret, err := sm.CreateSecret("db-password", []byte("my-password"))
	if err != nil {
		panic(err)
	}

	// Secret is ready to store
	fmt.Println("Secret ID:", secret.ID)    // "secret-..."
	fmt.Println("Secret Name:", secret.Name)  // "db-password"
	fmt.Println("Data encrypted:", len(secret.Data) > 0)  // true

	// Retrieve plaintext later
	plaintext, err := sm.GetSecretData(secret)
	if err != nil {
		panic(err)
	}

## Setting Up Certificate Authority

	import (
		"github.com/shuttle-mr/shuttle/pkg/security"
		"github.com/shuttle-mr/shuttle/pkg/store"
	)

	// Create storage backend
	st, err := store.NewBoltStore("/var/lib/shuttle")
	if err != nil {
		panic(err)
	}

	// Set cluster encryption key (required for CA)
	clusterKey := security.DeriveKeyFromClusterID(clusterID)
	err = security.SetClusterEncryptionKey(clusterKey)
	if err != nil {
		panic(err)
	}

	// Create and initialize CA
	ca := security.NewCertAuthority(st)
	err = ca.Initialize()  // Generates root CA
	if err != nil {
		panic(err)
	}

	// Save CA to storage (encrypted)
	err = ca.SaveToStore()
	if err != nil {
		panic(err)
	}

## Issuing Node Certificates

	// Issue certificate for a manager node
	nodeID := "manager-1"
	role := "manager"
	dnsNames := []string{"manager1.cluster.local", "localhost"}
	ipAddresses := []net.IP{
		net.ParseIP("192.168.1.10"),
		net.ParseIP("127.0.0.1"),
	}

	tlsCert, err := ca.IssueNodeCertificate(nodeID, role, dnsNames, ipAddresses)
	if err != nil {
		panic(err)
	}

	// Certificate ready to use for TLS
	fmt.Println("Certificate issued for:", nodeID)
	fmt.Println("Valid until:", tlsCert.Leaf.NotAfter)

## Verifying Certificates

	// Load certificate from file or network
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		panic(err)
	}

	// Verify against CA
	err = ca.VerifyCertificate(cert)
	if err != nil {
		// Certificate invalid or not issued by this CA
		panic(err)
	}

	fmt.Println("Certificate verified successfully")

## Certificate Rotation

	// Check if certificate needs rotation (< 30 days remaining)
	needsRotation := security.CertNeedsRotation(cert)

	if needsRotation {
		// Request new certificate from CA
		newTLSCert, err := ca.IssueNodeCertificate(nodeID, role, dnsNames, ipAddresses)
		if err != nil {
			panic(err)
		}

		// Save new certificate
		certDir, _ := security.GetCertDir(role, nodeID)
		err = security.SaveCertToFile(newTLSCert, certDir)
		if err != nil {
			panic(err)
		}

		fmt.Println("Certificate rotated successfully")
	}

# Integration Points

## Storage Integration

SaveToStore persists the CA to BoltDB (pkg/store):

	Bucket: "ca"
	Key: "ca"
	Value: {RootCertDER: [...], RootKeyDER: [...encrypted...]}

Only the root private key is encrypted at rest; the root certificate is
stored as is. The store has no bucket for secrets.

## Coordinator Integration

pkg/coordgroup's Manager uses this package directly:

  - NewManager creates the CertAuthority on its store and installs the
    cluster encryption key
  - when it bootstraps a cluster it initializes and saves the CA and issues
    its own "coordinator" certificate into GetCertDir("coordinator", nodeID)
  - IssueCertificate(nodeID, role) issues a certificate through the CA

The coordinator performs no secret operations.

## gRPC TLS Integration

Connections use TLS only where a CA-issued certificate has been saved:

  - pkg/api and pkg/worker serve TLS 1.3 when their certificate directory
    holds a certificate, and serve without transport security otherwise.
    Both use tls.RequestClientCert, so a client certificate is requested
    but neither required nor verified.
  - pkg/worker and pkg/client dial the coordinator with TLS when they find
    a certificate, and without transport security otherwise.
  - The coordinator's calls to workers (pkg/coordgroup's WorkerRPC) and
    the shuttlectl query tool always dial without transport security.

## Container Integration

Nothing in this module injects secrets into attempt containers.

# Design Patterns

## Authenticated Encryption

GCM mode provides both confidentiality and integrity:

	Encryption:  plaintext + key + nonce → ciphertext + tag
	Decryption:  ciphertext + tag + key + nonce → plaintext (or error)

The authentication tag prevents tampering:
  - Modified ciphertext → decryption fails
  - Wrong key → decryption fails
  - Wrong nonce → decryption fails

This is critical for secrets - we must detect tampering.

## Hierarchical PKI

The CA uses a standard hierarchical structure:

	Root CA (trust anchor)
	└── Node/Client Certificates (issued by root)

Benefits:
  - Root key rarely used (only for issuing certs)
  - Root can be offline for additional security
  - Revocation via CRL/OCSP (future enhancement)

## Key Derivation

The cluster encryption key is derived deterministically:

	clusterKey = SHA-256(clusterID)

This means:
  - Same cluster ID → same key (important for replicas)
  - Key can be recomputed without storage
  - Backup = cluster ID (must be kept secret!)

## Certificate Caching

The CA records issued certificates in memory:

	certCache[nodeID] = {Cert, Key, IssuedAt, ExpiresAt}

GetCachedCert reads this record. Issuance does not consult it: every call
to IssueNodeCertificate or IssueClientCertificate generates a new key and
certificate (~50-100ms) and overwrites the entry.

# Performance Characteristics

## Encryption Performance

AES-256-GCM is hardware-accelerated on modern CPUs (AES-NI):

  - Encryption: ~100-200 MB/s per core
  - Decryption: ~100-200 MB/s per core
  - Small secrets (< 1KB): ~1-2μs per operation

For small secrets (typically < 1KB):
  - 1000 secrets/second easily achievable
  - Negligible CPU overhead

## Certificate Issuance Performance

Certificate generation is more expensive:

  - Root CA generation (RSA 4096): ~500ms (one-time)
  - Node cert generation (RSA 2048): ~50-100ms
  - Certificate verification: ~1-2ms

Recommendations:
  - Cache certificates (reduces load)
  - Issue certificates asynchronously (don't block)
  - Pre-generate certificates when possible

## Memory Usage

Security operations are memory-efficient:

  - SecretsManager: ~1KB (just the key)
  - CA: ~100KB (root cert + cache)
  - Per-node certificate: ~2KB

Total: ~5-10MB for typical cluster (100 nodes).

# Security Considerations

## Key Management

The cluster encryption key is critical:

  - Compromise = all secrets exposed
  - Loss = cluster unrecoverable
  - Must be backed up securely
  - Consider key rotation (future enhancement)

Best practices:
  - Store cluster ID in encrypted vault (HashiCorp Vault, etc.)
  - Use hardware security modules (HSM) for production
  - Rotate key periodically (requires re-encryption)

## Certificate Rotation

Certificates expire after 90 days (nodes) or 10 years (root CA):

  - Nothing in this module calls CertNeedsRotation or reissues a
    certificate on its own
  - Rotation is manual: issue a new certificate and save it with
    SaveCertToFile (see Certificate Rotation under Usage Examples)
  - Grace period: CertNeedsRotation reports true within 30 days of expiry

Plan for rotation:
  - Monitor certificate expiry dates
  - Implement automated renewal (future)
  - Test rotation in staging

## Threat Model

On connections that use CA-issued certificates, shuttle's security
protects against:

	✓ Network eavesdropping (TLS encryption)
	✓ Secret tampering (authenticated encryption)
	✓ Server impersonation (CA-signed certificates)

shuttle does NOT protect against:

	✗ Eavesdropping on connections made without transport security
	  (see gRPC TLS Integration)
	✗ Unauthenticated clients (client certificates are not verified)
	✗ Compromised cluster encryption key (all secrets exposed)
	✗ Compromised CA private key (issue fake certificates)
	✗ Compromised coordinator node (full cluster access)
	✗ Physical access to storage (encrypted, but key in memory)

Defense in depth:
  - Encrypt storage volumes (LUKS, etc.)
  - Use secure boot and TPM
  - Implement RBAC (future enhancement)
  - Audit all security operations

## Cryptographic Agility

shuttle uses modern, proven cryptography:

  - AES-256-GCM (NIST approved, widely used)
  - RSA 2048/4096 (NIST approved, secure until ~2030)
  - SHA-256 (NIST approved, no known attacks)
  - TLS 1.3 where TLS is used (industry standard)

Future considerations:
  - Ed25519 for certificates (faster, smaller)
  - ChaCha20-Poly1305 for secrets (software-friendly)
  - Post-quantum cryptography (long-term)

# Troubleshooting

## Secret Decryption Failures

If decryption fails:

1. Check encryption key:
  - Ensure cluster key is correct
  - Verify key derivation from cluster ID
  - Check for key rotation events

2. Check for data corruption:
  - Verify ciphertext length (>= 28 bytes: 12 nonce + 16 tag)
  - Check storage backend integrity
  - Look for bit flips or disk errors

3. Check for tampering:
  - GCM will detect any modification
  - Check logs for unauthorized access
  - Review audit trails

## Certificate Verification Failures

If certificate verification fails:

1. Check CA consistency:
  - Ensure CA is loaded correctly
  - Verify root certificate matches
  - Check for CA rotation

2. Check certificate validity:
  - Verify not expired (NotAfter > now)
  - Verify not used too early (NotBefore < now)
  - Check certificate chain

3. Check certificate content:
  - Verify DNS names match
  - Verify IP addresses match
  - Check key usage flags

## Performance Issues

If security operations are slow:

1. Check CPU features:
  - Verify AES-NI is enabled (lscpu | grep aes)
  - Check for CPU throttling
  - Monitor CPU usage during encryption

2. Check certificate caching:
  - Verify cache is being used
  - Check cache hit rate
  - Monitor cert generation frequency

3. Check key size:
  - Consider RSA 2048 instead of 4096 for nodes
  - Balance security vs. performance
  - Profile cryptographic operations

# Monitoring Metrics

Key security metrics to monitor:

  - Secrets encrypted/decrypted per second
  - Certificate issuance rate
  - Certificate verification failures
  - Certificate expiry dates
  - CA operations (rare, should be low)

# See Also

  - pkg/store - BoltDB store holding the CA
  - pkg/coordgroup - coordinator that creates the CA and issues certificates
  - pkg/api, pkg/worker, pkg/client - gRPC TLS setup from the certificate files
*/
package security
