package agent

import (
	"testing"
	"time"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepLaunchRequest wraps sleep in a shell so the --home/--agent-index/
// --worker-index flags ProcessManager.Launch appends land as harmless extra
// positional parameters instead of being parsed by sleep(1) itself.
func sleepLaunchRequest(seconds string) LaunchRequest {
	return LaunchRequest{
		Kind:        benchtypes.WorkerMember,
		VersionSpec: "test",
		Command:     "sh",
		Args:        []string{"-c", "sleep " + seconds},
	}
}

func TestLaunchAssignsSequentialWorkerIndicesAndCreatesHomeDirs(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())

	w0, err := pm.Launch(sleepLaunchRequest("5"))
	require.NoError(t, err)
	w1, err := pm.Launch(sleepLaunchRequest("5"))
	require.NoError(t, err)

	assert.Equal(t, 1, w0.Data.WorkerIndex)
	assert.Equal(t, 2, w1.Data.WorkerIndex)
	assert.DirExists(t, w0.HomeDir)
	assert.DirExists(t, w1.HomeDir)
	assert.NotEqual(t, w0.HomeDir, w1.HomeDir)

	_ = pm.Shutdown(w0.Data.WorkerIndex, 2*time.Second)
	_ = pm.Shutdown(w1.Data.WorkerIndex, 2*time.Second)
}

func TestGetWorkerProcessesReturnsSortedSnapshot(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())

	for i := 0; i < 3; i++ {
		_, err := pm.Launch(sleepLaunchRequest("5"))
		require.NoError(t, err)
	}

	snapshot := pm.GetWorkerProcesses()
	require.Len(t, snapshot, 3)
	for i, w := range snapshot {
		assert.Equal(t, i+1, w.Data.WorkerIndex)
	}

	for _, w := range snapshot {
		_ = pm.Shutdown(w.Data.WorkerIndex, 2*time.Second)
	}
}

func TestIsRunningReflectsLiveProcess(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())

	w, err := pm.Launch(sleepLaunchRequest("5"))
	require.NoError(t, err)

	assert.True(t, pm.IsRunning(w.Data.WorkerIndex))
	require.NoError(t, pm.Shutdown(w.Data.WorkerIndex, 2*time.Second))
	assert.False(t, pm.IsRunning(w.Data.WorkerIndex))
}

func TestExitCodeUnknownWhileRunning(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())

	w, err := pm.Launch(sleepLaunchRequest("5"))
	require.NoError(t, err)

	_, known := pm.ExitCode(w.Data.WorkerIndex)
	assert.False(t, known)

	_ = pm.Shutdown(w.Data.WorkerIndex, 2*time.Second)
}

func TestExitCodeReportsCleanExit(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())

	w, err := pm.Launch(LaunchRequest{
		Kind:    benchtypes.WorkerMember,
		Command: "true",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !pm.IsRunning(w.Data.WorkerIndex)
	}, 2*time.Second, 10*time.Millisecond)

	code, known := pm.ExitCode(w.Data.WorkerIndex)
	require.True(t, known)
	assert.Equal(t, 0, code)
}

func TestShutdownSendsSigtermAndRemovesWorker(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())

	w, err := pm.Launch(sleepLaunchRequest("30"))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, pm.Shutdown(w.Data.WorkerIndex, 2*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)

	_, ok := pm.Get(w.Data.WorkerIndex)
	assert.False(t, ok)
}

func TestShutdownFallsBackToSigkillOnTimeout(t *testing.T) {
	pm := NewProcessManager(0, t.TempDir())

	// sh ignoring SIGTERM forces the manager's SIGKILL fallback path.
	w, err := pm.Launch(LaunchRequest{
		Kind:    benchtypes.WorkerMember,
		Command: "sh",
		Args:    []string{"-c", "trap '' TERM; sleep 30"},
	})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, pm.Shutdown(w.Data.WorkerIndex, 200*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}
