package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// oomeMarkerName is the file the Failure Monitor treats as an OOM signal
// once it exists in a Worker's home directory.
const oomeMarkerName = "worker.oome"

// heartbeatName holds the Worker's self-reported lastSeen timestamp; it is
// refreshed on every incoming Dispatch and read by the Agent-side Failure
// Monitor's inactivity check.
const heartbeatName = "heartbeat"

// ArtifactWriter drops the failure/heartbeat files a Worker process uses to
// talk to its Agent's Failure Monitor, per the file-drop half of the
// Coordinator <-> Agent <-> Worker contract.
type ArtifactWriter struct {
	homeDir string
}

// NewArtifactWriter creates an ArtifactWriter rooted at homeDir. The
// directory must already exist.
func NewArtifactWriter(homeDir string) *ArtifactWriter {
	return &ArtifactWriter{homeDir: homeDir}
}

// WriteException drops a "<unix-nanos>.exception" file (named after the
// current time in nanoseconds, whatever the testID) whose first
// line is testID (or "null" if the failure is not test-scoped) and whose
// remainder is cause.
func (w *ArtifactWriter) WriteException(testID, cause string) error {
	if testID == "" {
		testID = "null"
	}
	name := fmt.Sprintf("%d.exception", time.Now().UnixNano())
	path := filepath.Join(w.homeDir, name)
	content := testID + "\n" + cause
	return os.WriteFile(path, []byte(content), 0o644)
}

// WriteOOMMarker drops the worker.oome sentinel file.
func (w *ArtifactWriter) WriteOOMMarker() error {
	return os.WriteFile(filepath.Join(w.homeDir, oomeMarkerName), nil, 0o644)
}

// Touch refreshes the heartbeat file's contents to the current time,
// matching the "Workers refresh lastSeen whenever they process an incoming
// operation" rule.
func (w *ArtifactWriter) Touch(now time.Time) error {
	path := filepath.Join(w.homeDir, heartbeatName)
	return os.WriteFile(path, []byte(now.UTC().Format(time.RFC3339Nano)), 0o644)
}
