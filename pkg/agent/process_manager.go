package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/log"
)

// LaunchRequest describes the Worker child process to fork.
type LaunchRequest struct {
	Kind        benchtypes.WorkerKind
	VersionSpec string
	Command     string
	Args        []string
}

// ManagedWorker is one Worker process this Agent owns.
type ManagedWorker struct {
	Data    benchtypes.WorkerData
	HomeDir string

	cmd *exec.Cmd
}

// ProcessManager owns the set of local Worker processes for one Agent. All
// mutation is serialized behind a single mutex, matching the teacher's
// Process type's own internal lock per process plus the spec's "all
// mutation is serialized" requirement at the manager level.
type ProcessManager struct {
	agentIndex int
	homeRoot   string

	mu              sync.Mutex
	nextWorkerIndex int
	workers         map[int]*ManagedWorker
}

// NewProcessManager creates a ProcessManager for the Agent at agentIndex,
// rooting every Worker's home directory under homeRoot.
func NewProcessManager(agentIndex int, homeRoot string) *ProcessManager {
	return &ProcessManager{
		agentIndex:      agentIndex,
		homeRoot:        homeRoot,
		nextWorkerIndex: 1, // worker/agent index 0 is address.Simulator's "unset" sentinel
		workers:         make(map[int]*ManagedWorker),
	}
}

// Launch assigns the next worker index, creates its home directory, forks
// the child with req's command line plus --home/--agent-index/--worker-index
// appended, and registers it. The child is expected to be this module's
// `warrenbench worker run` subcommand (or a test double with the same
// contract).
func (pm *ProcessManager) Launch(req LaunchRequest) (*ManagedWorker, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	idx := pm.nextWorkerIndex
	pm.nextWorkerIndex++

	home := filepath.Join(pm.homeRoot, fmt.Sprintf("worker-%d", idx))
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, newAgentError("launch", err)
	}

	args := append([]string{}, req.Args...)
	args = append(args,
		"--home", home,
		"--agent-index", fmt.Sprintf("%d", pm.agentIndex),
		"--worker-index", fmt.Sprintf("%d", idx),
	)

	cmd := exec.Command(req.Command, args...)
	cmd.Dir = home
	if err := cmd.Start(); err != nil {
		return nil, newAgentError("launch", err)
	}

	now := time.Now()
	mw := &ManagedWorker{
		Data: benchtypes.WorkerData{
			AgentAddressIndex: pm.agentIndex,
			WorkerIndex:       idx,
			Kind:              req.Kind,
			VersionSpec:       req.VersionSpec,
			StartTime:         now,
			LastSeen:          now,
		},
		HomeDir: home,
		cmd:     cmd,
	}
	pm.workers[idx] = mw
	return mw, nil
}

// GetWorkerProcesses returns a snapshot of every Worker this manager owns,
// ordered by worker index.
func (pm *ProcessManager) GetWorkerProcesses() []*ManagedWorker {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	out := make([]*ManagedWorker, 0, len(pm.workers))
	for _, w := range pm.workers {
		out = append(out, w)
	}
	sortByWorkerIndex(out)
	return out
}

// Get returns the ManagedWorker at workerIndex, if any.
func (pm *ProcessManager) Get(workerIndex int) (*ManagedWorker, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	w, ok := pm.workers[workerIndex]
	return w, ok
}

// Remove drops workerIndex from the manager without signalling it; used
// once a Worker has already exited on its own.
func (pm *ProcessManager) Remove(workerIndex int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.workers, workerIndex)
}

// IsRunning reports whether workerIndex's process is still alive.
func (pm *ProcessManager) IsRunning(workerIndex int) bool {
	pm.mu.Lock()
	w, ok := pm.workers[workerIndex]
	pm.mu.Unlock()
	if !ok || w.cmd.Process == nil {
		return false
	}
	return w.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// ExitCode returns the process's exit code once it has exited, and true.
// Returns (0, false) while the process is still running.
func (pm *ProcessManager) ExitCode(workerIndex int) (int, bool) {
	pm.mu.Lock()
	w, ok := pm.workers[workerIndex]
	pm.mu.Unlock()
	if !ok || w.cmd.ProcessState == nil {
		return 0, false
	}
	return w.cmd.ProcessState.ExitCode(), true
}

// Shutdown best-effort terminates workerIndex: SIGTERM, a timed wait, then
// SIGKILL if it hasn't exited.
func (pm *ProcessManager) Shutdown(workerIndex int, timeout time.Duration) error {
	pm.mu.Lock()
	w, ok := pm.workers[workerIndex]
	pm.mu.Unlock()
	if !ok || w.cmd.Process == nil {
		return nil
	}

	if err := w.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Logger.Debug().Err(err).Int("workerIndex", workerIndex).Msg("agent: SIGTERM failed, process may already be gone")
	}

	done := make(chan error, 1)
	go func() { done <- w.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(timeout):
		if err := w.cmd.Process.Kill(); err != nil {
			return newAgentError("shutdown", err)
		}
		<-done
	}

	pm.Remove(workerIndex)
	return nil
}

func sortByWorkerIndex(workers []*ManagedWorker) {
	for i := 1; i < len(workers); i++ {
		for j := i; j > 0 && workers[j].Data.WorkerIndex < workers[j-1].Data.WorkerIndex; j-- {
			workers[j], workers[j-1] = workers[j-1], workers[j]
		}
	}
}
