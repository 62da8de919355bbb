package agent

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failureRecorder struct {
	mu       sync.Mutex
	received []benchtypes.FailureOperation
	accept   bool
}

func (r *failureRecorder) deliver(f benchtypes.FailureOperation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, f)
	return r.accept
}

func (r *failureRecorder) all() []benchtypes.FailureOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]benchtypes.FailureOperation, len(r.received))
	copy(out, r.received)
	return out
}

func newTestManagedWorker(t *testing.T, pm *ProcessManager) *ManagedWorker {
	w, err := pm.Launch(LaunchRequest{
		Kind:    benchtypes.WorkerMember,
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
	})
	require.NoError(t, err)
	return w
}

func TestScanDeliversExceptionAndRemovesArtifactOnSuccess(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w := newTestManagedWorker(t, pm)
	defer pm.Shutdown(w.Data.WorkerIndex, time.Second)

	exceptionPath := filepath.Join(w.HomeDir, "123.exception")
	require.NoError(t, os.WriteFile(exceptionPath, []byte("test-9\nboom"), 0o644))

	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 0, rec.deliver)

	fm.Scan(time.Now())

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, benchtypes.WorkerException, got[0].Kind)
	assert.Equal(t, "test-9", got[0].TestID)
	assert.Equal(t, "boom", got[0].Cause)

	_, err := os.Stat(exceptionPath)
	assert.True(t, os.IsNotExist(err))
}

func TestScanRenamesArtifactOnFailedDelivery(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w := newTestManagedWorker(t, pm)
	defer pm.Shutdown(w.Data.WorkerIndex, time.Second)

	exceptionPath := filepath.Join(w.HomeDir, "123.exception")
	require.NoError(t, os.WriteFile(exceptionPath, []byte("null\nboom"), 0o644))

	rec := &failureRecorder{accept: false}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 0, rec.deliver)

	fm.Scan(time.Now())

	assert.FileExists(t, exceptionPath+".sendFailure")
	_, err := os.Stat(exceptionPath)
	assert.True(t, os.IsNotExist(err))
}

func TestScanDetectsOOMMarkerOnce(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w := newTestManagedWorker(t, pm)
	defer pm.Shutdown(w.Data.WorkerIndex, time.Second)

	require.NoError(t, os.WriteFile(filepath.Join(w.HomeDir, oomeMarkerName), nil, 0o644))

	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 0, rec.deliver)

	fm.Scan(time.Now())
	fm.Scan(time.Now())

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, benchtypes.WorkerOOM, got[0].Kind)
}

func TestScanDetectsHprofAsOOM(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w := newTestManagedWorker(t, pm)
	defer pm.Shutdown(w.Data.WorkerIndex, time.Second)

	require.NoError(t, os.WriteFile(filepath.Join(w.HomeDir, "heap.hprof"), nil, 0o644))

	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 0, rec.deliver)

	fm.Scan(time.Now())

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, benchtypes.WorkerOOM, got[0].Kind)
}

func TestScanReportsTimeoutOnInactivity(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w := newTestManagedWorker(t, pm)
	defer pm.Shutdown(w.Data.WorkerIndex, time.Second)

	base := time.Now()
	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 5, rec.deliver)
	fm.StartTimeoutDetection(base)

	fm.Scan(base.Add(5 * time.Second))

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, benchtypes.WorkerTimeout, got[0].Kind)
}

func TestScanSkipsTimeoutWhenDetectionNotStarted(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w := newTestManagedWorker(t, pm)
	defer pm.Shutdown(w.Data.WorkerIndex, time.Second)

	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 5, rec.deliver)

	fm.Scan(w.Data.LastSeen.Add(50 * time.Second))

	assert.Empty(t, rec.all())
}

func TestScanReportsCleanExit(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w, err := pm.Launch(LaunchRequest{Kind: benchtypes.WorkerMember, Command: "true"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !pm.IsRunning(w.Data.WorkerIndex)
	}, 2*time.Second, 10*time.Millisecond)

	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 0, rec.deliver)

	fm.Scan(time.Now())

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, benchtypes.WorkerFinished, got[0].Kind)
}

func TestScanReportsNonzeroExit(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w, err := pm.Launch(LaunchRequest{Kind: benchtypes.WorkerMember, Command: "false"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !pm.IsRunning(w.Data.WorkerIndex)
	}, 2*time.Second, 10*time.Millisecond)

	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 0, rec.deliver)

	fm.Scan(time.Now())

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, benchtypes.WorkerExit, got[0].Kind)
	assert.Contains(t, got[0].Cause, "exit code")
}

func TestScanSkipsFinishedWorkers(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())
	w := newTestManagedWorker(t, pm)
	defer pm.Shutdown(w.Data.WorkerIndex, time.Second)

	mw, ok := pm.Get(w.Data.WorkerIndex)
	require.True(t, ok)
	mw.Data.IsFinished = true

	rec := &failureRecorder{accept: true}
	fm := NewFailureMonitor(pm, "agent-1", "suite-1", 0, rec.deliver)
	fm.Scan(time.Now())

	assert.Empty(t, rec.all())
}
