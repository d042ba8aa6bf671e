package deface

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"

	"github.com/effigies/quickshear/pkg/nifti"
)

// ErrSkipped marks batch subjects that were never started because an earlier
// subject failed and the batch was configured to stop.
var ErrSkipped = errors.New("skipped after an earlier failure")

// BatchEntry is one subject in a batch manifest.
type BatchEntry struct {
	// Anat is the path of the anatomical image to deface.
	Anat string `yaml:"anat"`

	// Mask is the path of the matching brain mask.
	Mask string `yaml:"mask"`

	// Output is the path the defaced image is written to.
	Output string `yaml:"output"`

	// Buffer overrides the batch-wide buffer for this subject when set.
	Buffer *int `yaml:"buffer,omitempty"`
}

// Batch is a parsed batch manifest: a list of subjects to deface with shared
// parameters.
type Batch struct {
	Subjects []BatchEntry `yaml:"subjects"`
}

// LoadBatch reads and validates a YAML batch manifest.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading batch manifest: %w", err)
	}

	batch := &Batch{}
	if err := yaml.Unmarshal(data, batch); err != nil {
		return nil, fmt.Errorf("error parsing batch manifest: %w", err)
	}

	if len(batch.Subjects) == 0 {
		return nil, fmt.Errorf("batch manifest %s lists no subjects", path)
	}
	for i, e := range batch.Subjects {
		if e.Anat == "" || e.Mask == "" || e.Output == "" {
			return nil, fmt.Errorf("subject %d: anat, mask, and output are all required", i+1)
		}
	}
	return batch, nil
}

// BatchParams configures a batch run.
type BatchParams struct {
	// Params is applied to every subject; a subject's own buffer override
	// takes precedence.
	Params

	// Workers is the number of subjects defaced concurrently. Zero sizes the
	// pool automatically.
	Workers int

	// ContinueOnError keeps the batch running past failed subjects. When
	// false, no new subjects start after the first failure.
	ContinueOnError bool
}

// SubjectResult pairs a manifest entry with its outcome.
type SubjectResult struct {
	Entry  BatchEntry
	Result *Result
	Err    error
}

// workerCount sizes the pool: the requested count when positive, otherwise
// one worker per core, clamped so that concurrent subjects fit into free
// memory at a conservative half gigabyte each.
func workerCount(requested int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	const perWorker = 512 << 20
	if budget := int(memory.FreeMemory() / perWorker); budget < n {
		n = budget
	}
	if n < 1 {
		n = 1
	}
	return n
}

// RunBatch defaces every subject in the batch using a pool of workers. It
// returns one result per subject in manifest order, and an error summarizing
// the failures if any subject did not complete.
func RunBatch(batch *Batch, params *BatchParams) ([]SubjectResult, error) {
	workers := workerCount(params.Workers)
	log := params.Logger
	log.Debugf("defacing %d subjects with %d workers", len(batch.Subjects), workers)

	results := make([]SubjectResult, len(batch.Subjects))
	jobs := make(chan int)
	var failed atomic.Bool
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entry := batch.Subjects[i]
				res, err := runSubject(entry, &params.Params, i, len(batch.Subjects))
				if err != nil {
					failed.Store(true)
					log.Errorf("subject %d (%s): %v", i+1, entry.Anat, err)
				}
				results[i] = SubjectResult{Entry: entry, Result: res, Err: err}
			}
		}()
	}

	stopped := 0
	for i := range batch.Subjects {
		if !params.ContinueOnError && failed.Load() {
			results[i] = SubjectResult{Entry: batch.Subjects[i], Err: ErrSkipped}
			stopped++
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	if failures > 0 {
		return results, fmt.Errorf("%d of %d subjects failed", failures, len(batch.Subjects))
	}
	return results, nil
}

// runSubject defaces a single manifest entry end to end: load both images,
// cut, and write the output.
func runSubject(entry BatchEntry, params *Params, index, total int) (*Result, error) {
	log := params.Logger
	log.Infof("[%d/%d] defacing %s", index+1, total, entry.Anat)

	anat, err := nifti.Load(entry.Anat)
	if err != nil {
		return nil, err
	}
	mask, err := nifti.Load(entry.Mask)
	if err != nil {
		return nil, err
	}

	subjectParams := *params
	if entry.Buffer != nil {
		subjectParams.Buffer = *entry.Buffer
	}
	res, err := Run(anat, mask, &subjectParams)
	if err != nil {
		return nil, err
	}

	if err := anat.Save(entry.Output); err != nil {
		return nil, err
	}
	log.Infof("Defaced file: %s", entry.Output)
	return res, nil
}
