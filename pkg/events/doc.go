/*
Package events provides an in-memory event broker for the coordinator's
pub/sub messaging.

The events package implements a lightweight event bus for broadcasting job
and worker lifecycle events to interested subscribers. It supports
asynchronous event delivery with buffered channels, enabling loose coupling
between coordinator components for state changes, notifications, and
monitoring.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Publish waits for buffer room            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Job Events:                                │          │
	│  │    - job.submitted, job.started             │          │
	│  │    - job.completed, job.failed, job.killed  │          │
	│  │                                              │          │
	│  │  Unit Events:                               │          │
	│  │    - unit.assigned, unit.failed             │          │
	│  │    - unit.completed                         │          │
	│  │                                              │          │
	│  │  Worker Events:                             │          │
	│  │    - worker.joined, worker.left             │          │
	│  │    - worker.down                            │          │
	│  │                                              │          │
	│  │  Coordinator Events:                        │          │
	│  │    - checkpoint.saved                       │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  No subscriber exists in this module        │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Publish blocks while the main buffered channel is full
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (job.submitted, unit.failed, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Event added to main event channel (waits while it is full; returns
    without sending once the broker is stopped)
 3. Broadcast loop receives event
 4. Event sent to all subscriber channels
 5. Subscribers receive event asynchronously
 6. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe()
 2. New buffered channel created
 3. Channel registered in subscriber map
 4. Subscriber channel returned
 5. Subscriber processes events in own goroutine

Unsubscribe Flow:
 1. Subscriber calls broker.Unsubscribe(channel)
 2. Channel removed from subscriber map
 3. Channel closed

# Usage

Creating and Starting Broker:

	import "github.com/shuttle-mr/shuttle/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to Events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Publishing Events:

	broker.Publish(&events.Event{
		ID:      "evt-123",
		Type:    events.EventJobSubmitted,
		Message: "job 'wordcount' submitted",
		Metadata: map[string]string{
			"job_id": "job-xyz",
			"nodes":  "2",
		},
	})

Filtering Events by Type:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.Type {
			case events.EventJobCompleted:
				handleJobCompleted(event)
			case events.EventUnitFailed:
				handleUnitFailed(event)
			default:
				// Ignore other events
			}
		}
	}()

# Integration Points

This package integrates with:

  - pkg/coordgroup: owns the Broker; Manager.PublishEvent forwards to it
  - pkg/api: publishes EventJobSubmitted from SubmitJob, and
    EventJobCompleted/EventJobFailed/EventJobKilled when a job's tracker
    finishes

No other package publishes, and no package in this module subscribes.

# Event Types Catalog

pkg/api publishes the four job events it sends with only Type and Message
set: the Metadata keys listed below are not filled in by any publisher in
this module, and the types other than EventJobSubmitted, EventJobCompleted,
EventJobFailed and EventJobKilled are not published by it.

Job Events:

EventJobSubmitted:
  - Published when: a new job is accepted by the coordinator
  - Metadata: job_id, nodes
  - Subscribers: none in this module

EventJobStarted:
  - Published when: the Job Tracker starts the job's source stages
  - Metadata: job_id

EventJobCompleted:
  - Published when: every stage finishes successfully
  - Metadata: job_id, duration_seconds

EventJobFailed:
  - Published when: any stage exhausts retries and the job is torn down
  - Metadata: job_id, failed_node

EventJobKilled:
  - Published when: a client kills a running job
  - Metadata: job_id

Unit Events:

EventUnitAssigned:
  - Published when: a work unit is handed to a polling worker
  - Metadata: job_id, node_index, unit_no, worker_id

EventUnitFailed:
  - Published when: an attempt reports failure
  - Metadata: job_id, node_index, unit_no, attempt_no

EventUnitCompleted:
  - Published when: an attempt reports success
  - Metadata: job_id, node_index, unit_no, attempt_no

Worker Events:

EventWorkerJoined:
  - Published when: a worker registers with the coordinator
  - Metadata: worker_id, slots

EventWorkerLeft:
  - Published when: a worker deregisters gracefully

EventWorkerDown:
  - Published when: a worker's heartbeat window lapses
  - Metadata: worker_id, last_seen
  - Subscribers: none in this module

Coordinator Events:

EventCheckpoint:
  - Published when: the Stage Controller durably checkpoints progress
  - Metadata: job_id, node_index

# Design Patterns

Blocking Publish:
  - Publish sends to the buffered main channel, waiting while it is full
  - Once the broker is stopped, Publish returns without sending
  - Events are dropped only at full subscriber buffers (see Fan-Out)

Fan-Out Pattern:
  - Single event broadcast to all subscribers
  - Each subscriber gets own channel
  - Full buffers skip to prevent blocking

# Limitations

  - In-memory only, no persistence or replay
  - No guaranteed delivery (best effort)
  - No topic-based filtering (all events broadcast)

# See Also

  - pkg/coordgroup for the Manager that owns the broker
  - pkg/api for the job events it publishes
*/
package events
