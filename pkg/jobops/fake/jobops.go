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

// Package fake provides an in-memory JobOperations for tests.
package fake

import (
	"context"
	"sync"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/jobops"
)

// JobOperations is a goroutine-safe, fully in-memory jobops.JobOperations.
type JobOperations struct {
	mu sync.RWMutex

	tasks map[v1alpha1.JobId][]v1alpha1.Task
	jobs  map[v1alpha1.JobId]v1alpha1.Job

	// tasksErr, when set for a jobId, is returned by GetTasks instead of a result.
	tasksErr map[v1alpha1.JobId]error
}

func New() *JobOperations {
	return &JobOperations{
		tasks:    map[v1alpha1.JobId][]v1alpha1.Task{},
		jobs:     map[v1alpha1.JobId]v1alpha1.Job{},
		tasksErr: map[v1alpha1.JobId]error{},
	}
}

// SetTasks sets the running tasks returned for jobId, and registers the job as existing.
func (f *JobOperations) SetTasks(jobId v1alpha1.JobId, tasks ...v1alpha1.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[jobId] = tasks
	f.jobs[jobId] = v1alpha1.Job{JobId: jobId}
}

// SetTasksErr forces GetTasks(jobId) to return err on every call until cleared
// by SetTasksErr(jobId, nil) or RemoveJob.
func (f *JobOperations) SetTasksErr(jobId v1alpha1.JobId, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.tasksErr, jobId)
		return
	}
	f.tasksErr[jobId] = err
}

// RemoveJob deletes the job, causing both GetJob and GetTasks to behave as not-found.
func (f *JobOperations) RemoveJob(jobId v1alpha1.JobId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, jobId)
	delete(f.jobs, jobId)
	delete(f.tasksErr, jobId)
}

func (f *JobOperations) GetTasks(_ context.Context, jobId v1alpha1.JobId) ([]v1alpha1.Task, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err, ok := f.tasksErr[jobId]; ok {
		return nil, err
	}
	if _, ok := f.jobs[jobId]; !ok {
		return nil, jobops.ErrJobNotFound
	}
	return append([]v1alpha1.Task{}, f.tasks[jobId]...), nil
}

func (f *JobOperations) GetJob(_ context.Context, jobId v1alpha1.JobId) (*v1alpha1.Job, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	job, ok := f.jobs[jobId]
	if !ok {
		return nil, nil
	}
	return &job, nil
}
