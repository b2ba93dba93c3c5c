package store

import (
	"testing"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	job := &types.Job{ID: "job-1", Name: "wordcount", State: types.JobStatePending}
	require.NoError(t, s.CreateJob(job))

	got, err := s.GetJob("job-1")
	require.NoError(t, err)
	require.Equal(t, job.Name, got.Name)

	job.State = types.JobStateRunning
	require.NoError(t, s.UpdateJob(job))
	got, err = s.GetJob("job-1")
	require.NoError(t, err)
	require.Equal(t, types.JobStateRunning, got.State)

	jobs, err := s.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, s.DeleteJob("job-1"))
	_, err = s.GetJob("job-1")
	require.ErrorIs(t, err, shuttleerr.ErrJobNotFound)
}

func TestWorkerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	w := &types.WorkerInfo{ID: "w1", Endpoint: "10.0.0.1:9000", Slots: 4}
	require.NoError(t, s.UpsertWorker(w))

	got, err := s.GetWorker("w1")
	require.NoError(t, err)
	require.Equal(t, 4, got.Slots)

	workers, err := s.ListWorkers()
	require.NoError(t, err)
	require.Len(t, workers, 1)

	require.NoError(t, s.DeleteWorker("w1"))
	_, err = s.GetWorker("w1")
	require.ErrorIs(t, err, shuttleerr.ErrNotFound)
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveCheckpoint("job-1", []byte(`{"units":1}`)))

	data, err := s.GetCheckpoint("job-1")
	require.NoError(t, err)
	require.Equal(t, `{"units":1}`, string(data))

	require.NoError(t, s.DeleteCheckpoint("job-1"))
	_, err = s.GetCheckpoint("job-1")
	require.ErrorIs(t, err, shuttleerr.ErrNotFound)
}

func TestCARoundTrip(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCA()
	require.ErrorIs(t, err, shuttleerr.ErrNotFound)

	require.NoError(t, s.SaveCA([]byte("cert-bytes")))
	data, err := s.GetCA()
	require.NoError(t, err)
	require.Equal(t, "cert-bytes", string(data))
}
