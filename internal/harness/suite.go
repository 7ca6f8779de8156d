package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is one scenario that failed to load, run or pass.
type SuiteFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RunSuite loads and runs every *.yaml scenario in dir, in file name order.
// A scenario that cannot be loaded counts as failed; the remaining ones
// still run.
func RunSuite(dir string) (*SuiteResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("scenario directory: %w", err)
		}
	}
	sort.Strings(paths)

	result := &SuiteResult{}
	for _, path := range paths {
		result.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		run, err := Run(scenario)
		if err != nil {
			result.fail(path, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !run.Pass {
			result.fail(path, fmt.Sprintf("scenario assertions failed: %v", run.Errors))
			continue
		}
		result.Passed++
	}
	return result, nil
}

func (r *SuiteResult) fail(path, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, SuiteFailure{Path: path, Error: msg})
}
