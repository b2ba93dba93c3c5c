/*
Package nameservice publishes and resolves the current Raft leader's RPC
endpoint for a shuttle coordinator group.

# Architecture

	┌────────────────────────────────────────────────────┐
	│                  Name Service                       │
	│  • TCP server, one per coordinator replica          │
	│  • Answers "resolve <name>" with an endpoint        │
	│  • Leader query always answered, even by followers  │
	└──────────┬───────────────────────────────────────────┘
	           │
	      ┌────┴─────┐
	      ▼          ▼
	  Registry    Resolver
	  (leader +   (leader query,
	  worker      worker lookup,
	  roster)     seed fallback)

# Usage

	registry := nameservice.NewRegistry()
	registry.SetLeader("10.0.0.1:9000") // called on every Raft leadership change

	server := nameservice.NewServer(registry, &nameservice.Config{
		ListenAddr: "0.0.0.0:7946",
	})
	go server.Start(ctx)
	defer server.Stop()

A worker or CLI client that only knows a seed list of coordinator addresses
resolves the leader by dialing any seed's name service port:

	resolver := nameservice.NewResolver(registry, seeds)
	addr, err := resolver.Resolve("leader")

# Protocol

The wire format is a single newline-terminated query line and a single
newline-terminated response line: "OK <addr>" or "ERR <message>". There is no
framing beyond the newline and no persistence; Registry state is rebuilt from
Raft leadership callbacks and worker heartbeats on every process restart.
*/
package nameservice
