package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
)

// TestCaseSpec is the YAML shape of one entry in a suite descriptor's test
// list.
type TestCaseSpec struct {
	ID         string            `yaml:"id"`
	Properties map[string]string `yaml:"properties"`
}

// SuiteSpec is the YAML shape of a suite descriptor file, decoded with
// gopkg.in/yaml.v3 and converted into a benchtypes.TestSuite.
type SuiteSpec struct {
	ID                                  string         `yaml:"id"`
	Tests                               []TestCaseSpec `yaml:"tests"`
	DurationSeconds                     int            `yaml:"durationSeconds"`
	WaitForTestCase                     bool           `yaml:"waitForTestCase"`
	FailFast                            bool           `yaml:"failFast"`
	TolerableFailures                   []string       `yaml:"tolerableFailures"`
	RefreshJVM                          bool           `yaml:"refreshJvm"`
	VerifyEnabled                       *bool          `yaml:"verifyEnabled"`
	LastTestPhaseToSync                 string         `yaml:"lastTestPhaseToSync"`
	WaitForWorkerShutdownTimeoutSeconds int            `yaml:"waitForWorkerShutdownTimeoutSeconds"`
}

var phaseByName = func() map[string]benchtypes.TestPhase {
	m := make(map[string]benchtypes.TestPhase, len(benchtypes.Phases))
	for _, p := range benchtypes.Phases {
		m[p.String()] = p
	}
	return m
}()

// LoadSuite reads and decodes a suite descriptor file at path, converting it
// into a benchtypes.TestSuite ready for Coordinator.RunTestSuite.
func LoadSuite(path string) (benchtypes.TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return benchtypes.TestSuite{}, fmt.Errorf("config: read suite file %s: %w", path, err)
	}

	var spec SuiteSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return benchtypes.TestSuite{}, fmt.Errorf("config: parse suite file %s: %w", path, err)
	}

	return spec.toTestSuite()
}

func (s SuiteSpec) toTestSuite() (benchtypes.TestSuite, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}

	tests := make([]benchtypes.TestCase, 0, len(s.Tests))
	for _, t := range s.Tests {
		tc := benchtypes.TestCase{ID: t.ID, Properties: t.Properties}
		if tc.ID == "" {
			tc.ID = uuid.NewString()
		}
		if err := tc.Validate(); err != nil {
			return benchtypes.TestSuite{}, fmt.Errorf("config: invalid test case %q: %w", tc.ID, err)
		}
		tests = append(tests, tc)
	}

	tolerable := make([]benchtypes.FailureKind, 0, len(s.TolerableFailures))
	for _, name := range s.TolerableFailures {
		tolerable = append(tolerable, benchtypes.FailureKind(name))
	}

	lastPhase := benchtypes.GlobalWarmupPhase
	if s.LastTestPhaseToSync != "" {
		phase, ok := phaseByName[s.LastTestPhaseToSync]
		if !ok {
			return benchtypes.TestSuite{}, fmt.Errorf("config: unknown phase %q in lastTestPhaseToSync", s.LastTestPhaseToSync)
		}
		lastPhase = phase
	}

	verifyEnabled := true
	if s.VerifyEnabled != nil {
		verifyEnabled = *s.VerifyEnabled
	}

	shutdownTimeout := s.WaitForWorkerShutdownTimeoutSeconds
	if shutdownTimeout == 0 {
		shutdownTimeout = 30
	}

	return benchtypes.TestSuite{
		ID:                                  id,
		Tests:                               tests,
		DurationSeconds:                     s.DurationSeconds,
		WaitForTestCase:                     s.WaitForTestCase,
		FailFast:                            s.FailFast,
		TolerableFailures:                   tolerable,
		RefreshJVM:                          s.RefreshJVM,
		VerifyEnabled:                       verifyEnabled,
		LastTestPhaseToSync:                 lastPhase,
		WaitForWorkerShutdownTimeoutSeconds: shutdownTimeout,
	}, nil
}
