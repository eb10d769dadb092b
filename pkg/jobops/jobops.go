/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package jobops defines the narrow, out-of-scope job manager contract the
// reconciler reads through: enumerating a job's running tasks and checking
// whether a job still exists.
package jobops

import (
	"context"
	"errors"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
)

// ErrJobNotFound signals that the job manager has no record of the job at all,
// which the phase engine treats as an orphan association.
var ErrJobNotFound = errors.New("jobops: job not found")

// JobOperations is the reconciler's view into the job manager. Implementations
// are expected to be safe for concurrent use; the reconciler calls GetTasks
// concurrently across associations and detects a missing job through its
// ErrJobNotFound. The reconciler does not call GetJob.
type JobOperations interface {
	// GetTasks returns the job's currently running tasks. It returns
	// ErrJobNotFound (checked with errors.Is) if the job no longer exists,
	// which the caller treats as an orphan signal distinct from any other
	// (transient) error.
	GetTasks(ctx context.Context, jobId v1alpha1.JobId) ([]v1alpha1.Task, error)

	// GetJob returns the job, or (nil, nil) if it does not exist.
	GetJob(ctx context.Context, jobId v1alpha1.JobId) (*v1alpha1.Job, error)
}
