package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/shuttle-mr/shuttle/pkg/rpc"
	"github.com/shuttle-mr/shuttle/pkg/security"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

const defaultCallTimeout = 10 * time.Second

// Client is a Go wrapper around pkg/rpc.CoordinatorClient: job submission
// and introspection for shuttlectl and any other Go caller.
type Client struct {
	conn   *grpc.ClientConn
	client rpc.CoordinatorClient
}

// NewClient dials addr with mTLS, using a CLI certificate already present
// at security.GetCertDir("cli", ""). Unlike the cluster's coordinator and
// worker certificates, nothing issues a CLI certificate over RPC in this
// build — pkg/rpc has no RequestCertificate method — so one must be copied
// in from a coordinator's own cert directory before a caller can use this
// constructor. Use NewInsecureClient for a development cluster running
// without mTLS.
func NewClient(addr string) (*Client, error) {
	certDir, err := security.GetCertDir("cli", "")
	if err != nil {
		return nil, fmt.Errorf("get cli cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("cli certificate not found at %s: copy cert.pem/key.pem/ca.pem from a coordinator's cert directory first", certDir)
	}

	conn, err := dialMTLS(addr, certDir)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewCoordinatorClient(conn)}, nil
}

// NewInsecureClient dials addr without transport security, for a
// development cluster whose coordinator has not provisioned certificates.
func NewInsecureClient(addr string) (*Client, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, rpc.DialOptions()...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: rpc.NewCoordinatorClient(conn)}, nil
}

func dialMTLS(addr, certDir string) (*grpc.ClientConn, error) {
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load cli certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load ca certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      certPool,
		MinVersion:   tls.VersionTLS13,
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig))}, rpc.DialOptions()...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultCallTimeout)
}

// SubmitJob submits job and returns the coordinator-assigned job ID.
func (c *Client) SubmitJob(job *types.Job) (string, error) {
	ctx, cancel := callCtx()
	defer cancel()

	resp, err := c.client.SubmitJob(ctx, &rpc.SubmitJobRequest{Job: job})
	if err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// ListJobs returns the full job roster.
func (c *Client) ListJobs() ([]*types.Job, error) {
	ctx, cancel := callCtx()
	defer cancel()

	resp, err := c.client.ListJobs(ctx, &rpc.ListJobsRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// ShowJob returns one job's full status, including per-node progress.
func (c *Client) ShowJob(jobID string) (*rpc.ShowJobResponse, error) {
	ctx, cancel := callCtx()
	defer cancel()

	return c.client.ShowJob(ctx, &rpc.ShowJobRequest{JobID: jobID})
}

// KillJob terminates a running job.
func (c *Client) KillJob(jobID string) error {
	ctx, cancel := callCtx()
	defer cancel()

	_, err := c.client.KillJob(ctx, &rpc.KillJobRequest{JobID: jobID})
	return err
}
