// Package store holds every job record of the process. It is the only shared
// mutable state between the HTTP surface and background downloads.
package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/job"
)

type entry struct {
	mu  sync.Mutex
	job *job.Job
}

// Store is a concurrent job map. Each record has its own lock, so writers of
// different jobs never wait on each other.
type Store struct {
	entries sync.Map // job id -> *entry
}

func New() *Store {
	return &Store{}
}

// Create inserts j. It refuses to overwrite an existing record.
func (s *Store) Create(j *job.Job) error {
	if j == nil || j.ID == "" {
		return errors.New("job store create: empty job id")
	}

	c := j.Clone()
	if _, loaded := s.entries.LoadOrStore(j.ID, &entry{job: &c}); loaded {
		return errors.Wrapf(job.ErrAlreadyExists, "job store create %s", j.ID)
	}
	return nil
}

// Update merges p into the record under its lock and returns the result.
// Updating an id that was never created is a programming error and yields
// job.ErrNotFound instead of an implicit insert.
func (s *Store) Update(id string, p job.Patch) (job.Job, error) {
	e, ok := s.load(id)
	if !ok {
		return job.Job{}, errors.Wrapf(job.ErrNotFound, "job store update %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.job.Apply(p); err != nil {
		return e.job.Clone(), errors.Wrapf(err, "job store update %s", id)
	}
	return e.job.Clone(), nil
}

func (s *Store) Get(id string) (job.Job, error) {
	e, ok := s.load(id)
	if !ok {
		return job.Job{}, errors.Wrapf(job.ErrNotFound, "job store get %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// List returns a snapshot of all jobs, oldest first.
func (s *Store) List() []job.Job {
	jobs := make([]job.Job, 0)
	s.entries.Range(func(_, value interface{}) bool {
		e := value.(*entry)
		e.mu.Lock()
		jobs = append(jobs, e.job.Clone())
		e.mu.Unlock()
		return true
	})

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs
}

func (s *Store) Len() int {
	n := 0
	s.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Delete removes a terminal job. Live jobs are never evicted.
func (s *Store) Delete(id string) error {
	e, ok := s.load(id)
	if !ok {
		return errors.Wrapf(job.ErrNotFound, "job store delete %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.job.Status.IsTerminal() {
		return errors.Wrapf(job.ErrInvalidTransition, "job store delete %s: job is %s", id, e.job.Status)
	}
	s.entries.Delete(id)
	return nil
}

func (s *Store) load(id string) (*entry, bool) {
	v, ok := s.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}
