package agent

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/log"
)

// DefaultCheckInterval is the scan loop's default wake-up period.
const DefaultCheckInterval = 1 * time.Second

type scanState struct {
	oomeDetected   bool
	timeoutEnabled bool
}

// FailureMonitor is the Agent-side background scanner that turns Worker
// artifact files and process exits into FailureOperation reports delivered
// upstream, grounded on the same ticker-plus-per-target-map shape the
// teacher used for its own deleted health monitor.
type FailureMonitor struct {
	pm                     *ProcessManager
	agentPublicAddress     string
	testSuiteRef           string
	checkInterval          time.Duration
	lastSeenTimeoutSeconds int64
	deliver                func(benchtypes.FailureOperation) bool

	mu       sync.Mutex
	states   map[int]*scanState
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFailureMonitor creates a FailureMonitor over pm. deliver is called for
// every detected failure and must return whether upstream delivery
// succeeded; on false the triggering artifact is retained (renamed, not
// deleted) so it is not silently dropped.
func NewFailureMonitor(pm *ProcessManager, agentPublicAddress, testSuiteRef string, lastSeenTimeoutSeconds int64, deliver func(benchtypes.FailureOperation) bool) *FailureMonitor {
	return &FailureMonitor{
		pm:                     pm,
		agentPublicAddress:     agentPublicAddress,
		testSuiteRef:           testSuiteRef,
		checkInterval:          DefaultCheckInterval,
		lastSeenTimeoutSeconds: lastSeenTimeoutSeconds,
		deliver:                deliver,
		states:                 make(map[int]*scanState),
		stopCh:                 make(chan struct{}),
	}
}

// Start begins the scan loop on a dedicated goroutine.
func (fm *FailureMonitor) Start() {
	go func() {
		ticker := time.NewTicker(fm.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fm.scan(time.Now())
			case <-fm.stopCh:
				return
			}
		}
	}()
}

// Stop halts the scan loop. Safe to call more than once.
func (fm *FailureMonitor) Stop() {
	fm.stopOnce.Do(func() { close(fm.stopCh) })
}

// StartTimeoutDetection resets every known Worker's lastSeen to now and
// enables the inactivity check.
func (fm *FailureMonitor) StartTimeoutDetection(now time.Time) {
	for _, w := range fm.pm.GetWorkerProcesses() {
		w.Data.LastSeen = now
		fm.stateFor(w.Data.WorkerIndex).timeoutEnabled = true
	}
}

// StopTimeoutDetection disables the inactivity check for every Worker.
func (fm *FailureMonitor) StopTimeoutDetection() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	for _, s := range fm.states {
		s.timeoutEnabled = false
	}
}

// Scan runs one pass of the detection checks immediately; exported so tests
// and callers needing a synchronous check don't have to wait for a tick.
func (fm *FailureMonitor) Scan(now time.Time) {
	fm.scan(now)
}

func (fm *FailureMonitor) scan(now time.Time) {
	for _, w := range fm.pm.GetWorkerProcesses() {
		if w.Data.IsFinished {
			continue
		}
		fm.scanOne(w, now)
	}
}

func (fm *FailureMonitor) scanOne(w *ManagedWorker, now time.Time) {
	workerAddr := address.NewWorkerAddress(w.Data.AgentAddressIndex, w.Data.WorkerIndex).String()

	if fm.scanExceptionFiles(w, workerAddr) {
		// An exception was reported this tick; still continue through the
		// remaining checks, matching "in order" rather than "exclusive".
	}

	state := fm.stateFor(w.Data.WorkerIndex)
	if state.oomeDetected {
		return
	}

	if fm.detectOOM(w) {
		state.oomeDetected = true
		fm.deliver(benchtypes.FailureOperation{
			Kind:               benchtypes.WorkerOOM,
			WorkerAddress:      workerAddr,
			AgentPublicAddress: fm.agentPublicAddress,
			WorkerID:           workerAddr,
			TestSuiteRef:       fm.testSuiteRef,
			ObservedAt:         now,
			Message:            "worker OOM marker detected",
		})
		return
	}

	if state.timeoutEnabled && fm.lastSeenTimeoutSeconds > 0 {
		if data, err := os.ReadFile(filepath.Join(w.HomeDir, "heartbeat")); err == nil {
			if at, err := time.Parse(time.RFC3339Nano, string(data)); err == nil && at.After(w.Data.LastSeen) {
				w.Data.LastSeen = at
			}
		}
		elapsed := int64(now.Sub(w.Data.LastSeen).Seconds())
		if elapsed > 0 && elapsed%fm.lastSeenTimeoutSeconds == 0 {
			fm.deliver(benchtypes.FailureOperation{
				Kind:               benchtypes.WorkerTimeout,
				WorkerAddress:      workerAddr,
				AgentPublicAddress: fm.agentPublicAddress,
				WorkerID:           workerAddr,
				TestSuiteRef:       fm.testSuiteRef,
				ObservedAt:         now,
				Message:            fmt.Sprintf("no activity for %ds", elapsed),
			})
		}
	}

	if !fm.pm.IsRunning(w.Data.WorkerIndex) {
		code, known := fm.pm.ExitCode(w.Data.WorkerIndex)
		if !known {
			return
		}
		if code == 0 {
			w.Data.IsFinished = true
			fm.deliver(benchtypes.FailureOperation{
				Kind:               benchtypes.WorkerFinished,
				WorkerAddress:      workerAddr,
				AgentPublicAddress: fm.agentPublicAddress,
				WorkerID:           workerAddr,
				TestSuiteRef:       fm.testSuiteRef,
				ObservedAt:         now,
				Message:            "worker process exited cleanly",
			})
		} else {
			w.Data.IsFinished = true
			fm.deliver(benchtypes.FailureOperation{
				Kind:               benchtypes.WorkerExit,
				WorkerAddress:      workerAddr,
				AgentPublicAddress: fm.agentPublicAddress,
				WorkerID:           workerAddr,
				TestSuiteRef:       fm.testSuiteRef,
				ObservedAt:         now,
				Cause:              fmt.Sprintf("exit code %d", code),
				Message:            "worker process exited unexpectedly",
			})
		}
	}
}

// scanExceptionFiles processes every *.exception artifact in w's home
// directory, delivering a WORKER_EXCEPTION failure for each and either
// deleting (on success) or renaming with a .sendFailure suffix (on
// failure) so it is retained but not re-emitted.
func (fm *FailureMonitor) scanExceptionFiles(w *ManagedWorker, workerAddr string) bool {
	matches, err := filepath.Glob(filepath.Join(w.HomeDir, "*.exception"))
	if err != nil || len(matches) == 0 {
		return false
	}

	any := false
	for _, path := range matches {
		testID, cause, err := readExceptionArtifact(path)
		if err != nil {
			log.Logger.Warn().Err(err).Str("path", path).Msg("agent: failed to read exception artifact")
			continue
		}

		any = true
		ok := fm.deliver(benchtypes.FailureOperation{
			Kind:               benchtypes.WorkerException,
			WorkerAddress:      workerAddr,
			AgentPublicAddress: fm.agentPublicAddress,
			WorkerID:           workerAddr,
			TestID:             testID,
			TestSuiteRef:       fm.testSuiteRef,
			Cause:              cause,
			ObservedAt:         time.Now(),
			Message:            "worker reported an exception",
		})

		if ok {
			if err := os.Remove(path); err != nil {
				log.Logger.Warn().Err(err).Str("path", path).Msg("agent: failed to remove delivered exception artifact")
			}
		} else if err := os.Rename(path, path+".sendFailure"); err != nil {
			log.Logger.Warn().Err(err).Str("path", path).Msg("agent: failed to rename undelivered exception artifact")
		}
	}
	return any
}

func readExceptionArtifact(path string) (testID, cause string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	firstLine := ""
	if scanner.Scan() {
		firstLine = scanner.Text()
	}

	rest := strings.TrimPrefix(string(data), firstLine)
	rest = strings.TrimPrefix(rest, "\n")

	if firstLine == "null" {
		return "", rest, nil
	}
	return firstLine, rest, nil
}

func (fm *FailureMonitor) detectOOM(w *ManagedWorker) bool {
	if _, err := os.Stat(filepath.Join(w.HomeDir, oomeMarkerName)); err == nil {
		return true
	}
	matches, err := filepath.Glob(filepath.Join(w.HomeDir, "*.hprof"))
	return err == nil && len(matches) > 0
}

func (fm *FailureMonitor) stateFor(workerIndex int) *scanState {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	s, ok := fm.states[workerIndex]
	if !ok {
		s = &scanState{}
		fm.states[workerIndex] = s
	}
	return s
}

// oomeMarkerName matches pkg/worker's artifact contract without importing
// that package for a single string constant.
const oomeMarkerName = "worker.oome"
