package coordgroup

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/shuttle-mr/shuttle/pkg/events"
	"github.com/shuttle-mr/shuttle/pkg/log"
	"github.com/shuttle-mr/shuttle/pkg/metrics"
	"github.com/shuttle-mr/shuttle/pkg/nameservice"
	"github.com/shuttle-mr/shuttle/pkg/security"
	"github.com/shuttle-mr/shuttle/pkg/store"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// Manager is one member of the coordinator group: a Raft voter holding the
// durable job/worker roster via FSM, plus the ambient coordinator services
// (CA, join tokens, event broker) that don't belong in the replicated log.
type Manager struct {
	nodeID   string
	bindAddr string
	rpcAddr  string
	dataDir  string

	raft         *raft.Raft
	fsm          *FSM
	store        store.Store
	tokenManager *TokenManager
	ca           *security.CertAuthority
	eventBroker  *events.Broker
	registry     *nameservice.Registry

	leaderNotifyCh chan bool
	stopNotify     chan struct{}
}

// Config holds configuration for creating a Manager.
type Config struct {
	NodeID   string
	BindAddr string
	// RPCAddr is the address this node's Coordinator gRPC service listens
	// on, advertised to the nameservice Registry whenever this node becomes
	// leader. Distinct from BindAddr, which is the Raft transport address.
	RPCAddr  string
	DataDir  string
	Registry *nameservice.Registry
}

// NewManager creates a new Manager instance.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	boltStore, err := store.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	fsm := NewFSM(boltStore)
	tokenManager := NewTokenManager()
	ca := security.NewCertAuthority(boltStore)

	clusterKey := security.DeriveKeyFromClusterID(cfg.NodeID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		return nil, fmt.Errorf("set cluster encryption key: %w", err)
	}

	eventBroker := events.NewBroker()
	eventBroker.Start()

	m := &Manager{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		rpcAddr:      cfg.RPCAddr,
		dataDir:      cfg.DataDir,
		fsm:          fsm,
		store:        boltStore,
		tokenManager: tokenManager,
		ca:           ca,
		eventBroker:  eventBroker,
		registry:     cfg.Registry,
	}

	return m, nil
}

func raftConfig(nodeID string) *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	// Tuned down from Hashicorp's WAN-oriented defaults (HeartbeatTimeout=1s,
	// ElectionTimeout=1s, LeaderLeaseTimeout=500ms) for sub-10s failover on
	// a LAN batch cluster: ~250ms heartbeats, ~500ms-1s elections.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	return config
}

func (m *Manager) buildRaft(config *raft.Config) (*raft.Raft, error) {
	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(m.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create stable store: %w", err)
	}

	config.NotifyCh = make(chan bool, 1)
	m.leaderNotifyCh = config.NotifyCh
	m.stopNotify = make(chan struct{})

	r, err := raft.NewRaft(config, m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("create raft: %w", err)
	}

	go m.watchLeadership()

	return r, nil
}

// watchLeadership publishes this node's leader status to the nameservice
// Registry so workers and the CLI can find whoever is presently in charge.
func (m *Manager) watchLeadership() {
	if m.registry == nil {
		return
	}
	for {
		select {
		case isLeader := <-m.leaderNotifyCh:
			if isLeader {
				m.registry.SetLeader(m.rpcAddr)
				log.Logger.Info().Str("component", "coordgroup").Str("rpc_addr", m.rpcAddr).Msg("became raft leader")
			} else {
				m.registry.SetLeader("")
				log.Logger.Info().Str("component", "coordgroup").Msg("lost raft leadership")
			}
		case <-m.stopNotify:
			return
		}
	}
}

// Bootstrap initializes a new single-node Raft cluster.
func (m *Manager) Bootstrap() error {
	config := raftConfig(m.nodeID)

	r, err := m.buildRaft(config)
	if err != nil {
		return err
	}
	m.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: config.LocalID, Address: raft.ServerAddress(m.bindAddr)},
		},
	}

	future := m.raft.BootstrapCluster(configuration)
	if err := future.Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}

	if err := m.initializeCA(); err != nil {
		return fmt.Errorf("initialize CA: %w", err)
	}

	return nil
}

// Join starts this manager's local Raft instance and loads the cluster CA
// already bootstrapped by the leader. leaderAddr is only logged and token is
// neither checked nor sent anywhere: this node stands up its own Raft
// transport and catches up via snapshot only once the leader's AddVoter
// adds it. pkg/rpc carries job/task traffic only, not membership changes.
func (m *Manager) Join(leaderAddr string, token string) error {
	config := raftConfig(m.nodeID)

	r, err := m.buildRaft(config)
	if err != nil {
		return err
	}
	m.raft = r

	log.Logger.Info().Str("component", "coordgroup").Str("leader", leaderAddr).Str("node_id", m.nodeID).Msg("joining coordinator group")

	if err := m.ca.LoadFromStore(); err != nil {
		return fmt.Errorf("load CA: %w", err)
	}

	return nil
}

// AddVoter adds a new coordinator node to the Raft configuration. It only
// succeeds on the current leader, and does not check a join token.
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}

	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("add voter: %w", err)
	}

	return nil
}

// RemoveServer removes a server from the Raft configuration.
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader")
	}

	future := m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("remove server: %w", err)
	}

	return nil
}

// GetClusterServers returns every server in the current Raft configuration.
func (m *Manager) GetClusterServers() ([]raft.Server, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}

	future := m.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("get configuration: %w", err)
	}

	return future.Configuration().Servers, nil
}

// IsLeader returns true if this manager currently holds Raft leadership.
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// LeaderAddr returns the Raft transport address of the current leader.
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// GetRaftStats returns a snapshot of Raft internal counters.
func (m *Manager) GetRaftStats() map[string]interface{} {
	if m.raft == nil {
		return nil
	}

	stats := make(map[string]interface{})
	stats["state"] = m.raft.State().String()
	stats["last_log_index"] = m.raft.LastIndex()
	stats["applied_index"] = m.raft.AppliedIndex()
	stats["leader"] = string(m.raft.Leader())
	stats["peers"] = uint64(m.Peers())

	return stats
}

// Peers returns the number of servers in the current Raft configuration;
// also implements pkg/metrics.RaftStats.
func (m *Manager) Peers() int {
	servers, err := m.GetClusterServers()
	if err != nil {
		return 0
	}
	return len(servers)
}

// GetEventBroker returns the coordinator group's event broker.
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// Store exposes the underlying durable store for read-only collaborators
// that poll job/worker state directly, such as pkg/metrics.Collector.
func (m *Manager) Store() store.Store {
	return m.store
}

// PublishEvent publishes an event to every subscriber.
func (m *Manager) PublishEvent(event *events.Event) {
	if m.eventBroker != nil {
		m.eventBroker.Publish(event)
	}
}

// apply submits cmd to the Raft log and waits for it to commit.
func (m *Manager) apply(cmd Command) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	future := m.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply command: %w", err)
	}

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}

	return nil
}

// CreateJob replicates job to every coordinator group member.
func (m *Manager) CreateJob(job *types.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return m.apply(Command{Op: opCreateJob, Data: data})
}

// UpdateJob replicates a job's updated state (node progress, terminal
// transitions) to every coordinator group member.
func (m *Manager) UpdateJob(job *types.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return m.apply(Command{Op: opUpdateJob, Data: data})
}

// DeleteJob removes a job from the replicated roster, used by the
// reconciler once a terminal job's TTL has passed.
func (m *Manager) DeleteJob(id string) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return m.apply(Command{Op: opDeleteJob, Data: data})
}

// UpsertWorker records or refreshes one worker's roster entry.
func (m *Manager) UpsertWorker(w *types.WorkerInfo) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return m.apply(Command{Op: opUpsertWorker, Data: data})
}

// DeleteWorker removes a worker from the roster, used when the reconciler
// decides a worker is permanently down.
func (m *Manager) DeleteWorker(id string) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return m.apply(Command{Op: opDeleteWorker, Data: data})
}

// SaveCheckpoint replicates a job's opaque stage/resource-manager
// checkpoint so a new leader can resume the job without replaying every
// AssignTask/FinishTask call from scratch.
func (m *Manager) SaveCheckpoint(jobID string, data []byte) error {
	payload, err := json.Marshal(checkpointPayload{JobID: jobID, Data: data})
	if err != nil {
		return err
	}
	return m.apply(Command{Op: opSaveCheckpoint, Data: payload})
}

// DeleteCheckpoint removes a job's checkpoint once it reaches a terminal
// state.
func (m *Manager) DeleteCheckpoint(jobID string) error {
	data, err := json.Marshal(jobID)
	if err != nil {
		return err
	}
	return m.apply(Command{Op: opDeleteCheckpoint, Data: data})
}

// GetJob reads a job from the local store.
func (m *Manager) GetJob(id string) (*types.Job, error) {
	return m.store.GetJob(id)
}

// ListJobs reads every job from the local store.
func (m *Manager) ListJobs() ([]*types.Job, error) {
	return m.store.ListJobs()
}

// GetWorker reads a worker roster entry from the local store.
func (m *Manager) GetWorker(id string) (*types.WorkerInfo, error) {
	return m.store.GetWorker(id)
}

// ListWorkers reads the full worker roster from the local store.
func (m *Manager) ListWorkers() ([]*types.WorkerInfo, error) {
	return m.store.ListWorkers()
}

// GetCheckpoint reads a job's checkpoint from the local store.
func (m *Manager) GetCheckpoint(jobID string) ([]byte, error) {
	return m.store.GetCheckpoint(jobID)
}

// GenerateJoinToken generates a new join token for admitting a coordinator
// or worker node.
func (m *Manager) GenerateJoinToken(role string) (*JoinToken, error) {
	if !m.IsLeader() {
		return nil, fmt.Errorf("not the leader, tokens can only be generated by the leader")
	}
	return m.tokenManager.GenerateToken(role, 24*time.Hour)
}

// ValidateJoinToken validates a join token and returns its role.
func (m *Manager) ValidateJoinToken(token string) (string, error) {
	return m.tokenManager.ValidateToken(token)
}

// Shutdown gracefully shuts down the manager.
func (m *Manager) Shutdown() error {
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}

	if m.stopNotify != nil {
		close(m.stopNotify)
	}

	if m.raft != nil {
		future := m.raft.Shutdown()
		if err := future.Error(); err != nil {
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}

	return nil
}

// initializeCA initializes or loads the cluster Certificate Authority.
func (m *Manager) initializeCA() error {
	if m.ca.IsInitialized() {
		return nil
	}

	if err := m.ca.LoadFromStore(); err == nil {
		return nil
	}

	if err := m.ca.Initialize(); err != nil {
		return fmt.Errorf("initialize CA: %w", err)
	}

	if err := m.ca.SaveToStore(); err != nil {
		return fmt.Errorf("save CA: %w", err)
	}

	certDir, err := security.GetCertDir("coordinator", m.nodeID)
	if err != nil {
		return fmt.Errorf("get cert directory: %w", err)
	}

	if security.CertExists(certDir) {
		return nil
	}

	host, _, err := net.SplitHostPort(m.bindAddr)
	if err != nil {
		return fmt.Errorf("parse bind address: %w", err)
	}
	var ipAddresses []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ipAddresses = []net.IP{ip}
	}

	dnsNames := []string{fmt.Sprintf("coordinator-%s", m.nodeID), "localhost"}

	cert, err := m.ca.IssueNodeCertificate(m.nodeID, "coordinator", dnsNames, ipAddresses)
	if err != nil {
		return fmt.Errorf("issue node certificate: %w", err)
	}

	if err := security.SaveCertToFile(cert, certDir); err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}

	if err := security.SaveCACertToFile(m.ca.GetRootCACert(), certDir); err != nil {
		return fmt.Errorf("save CA certificate: %w", err)
	}

	return nil
}

// IssueCertificate issues a client certificate for a worker or CLI client.
func (m *Manager) IssueCertificate(nodeID, role string) (*tls.Certificate, error) {
	if !m.ca.IsInitialized() {
		return nil, fmt.Errorf("CA not initialized")
	}
	return m.ca.IssueNodeCertificate(nodeID, role, nil, nil)
}

// CertToPEM converts a TLS certificate to PEM format.
func (m *Manager) CertToPEM(cert *tls.Certificate) (certPEM, keyPEM []byte, err error) {
	if cert == nil {
		return nil, nil, fmt.Errorf("certificate is nil")
	}

	certPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Certificate[0],
	})

	privateKey, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("private key is not RSA")
	}

	keyPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	return certPEM, keyPEM, nil
}

// GetCACertPEM returns the CA certificate in PEM format.
func (m *Manager) GetCACertPEM() []byte {
	if !m.ca.IsInitialized() {
		return nil
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: m.ca.GetRootCACert(),
	})
}

// NodeID returns the manager's node ID.
func (m *Manager) NodeID() string {
	return m.nodeID
}
