package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/intelliml/family"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/preprocessing"
	"github.com/YuminosukeSato/intelliml/trainer"
)

func result(score float64) *trainer.Result {
	best := &trainer.CandidateResult{
		Family:     family.Tree,
		ModelID:    family.RandomForest,
		ModelName:  "Random Forest",
		Score:      score,
		MetricName: trainer.MetricAccuracy,
	}
	return &trainer.Result{
		Task:    preprocessing.Classification,
		Target:  "purchased",
		Results: []*trainer.CandidateResult{best},
		Best:    best,
	}
}

func TestPutGetStatus(t *testing.T) {
	r := New()
	id, err := r.Put(&Job{Result: result(0.9), Summary: "ok"})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	job, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "purchased", job.Target)
	assert.Equal(t, preprocessing.Classification, job.Task)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	s, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusSummary{
		JobID: id, Status: StatusCompleted, Target: "purchased", Task: preprocessing.Classification,
		BestModel: "Random Forest", BestScore: 0.9, Metric: trainer.MetricAccuracy,
	}, s)
}

func TestPutCopiesJob(t *testing.T) {
	r := New()
	in := &Job{Result: result(0.5)}
	id, err := r.Put(in)
	require.NoError(t, err)
	in.Summary = "changed"
	job, err := r.Get(id)
	require.NoError(t, err)
	assert.Empty(t, job.Summary)
	assert.Empty(t, in.ID)
}

func TestUnknownJobIsNotFound(t *testing.T) {
	r := New()
	_, err := r.Get("missing")
	var serr *errors.StateError
	require.True(t, errors.As(err, &serr))
	assert.True(t, serr.IsNotFound())
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "missing")

	_, err = r.Status("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestPutRejectsEmptyJob(t *testing.T) {
	r := New()
	_, err := r.Put(&Job{})
	assert.True(t, errors.Is(err, errors.ErrNoTrainedModel))
	assert.Equal(t, 0, r.Len())
}

func TestListNewestFirst(t *testing.T) {
	r := New()
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := r.Put(&Job{Result: result(float64(i))})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	jobs := r.List()
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[0], jobs[2].ID)
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.Put(&Job{Result: result(float64(i)), Summary: fmt.Sprint(i)})
			if err == nil {
				ids <- id
			}
			_ = r.List()
		}(i)
	}
	wg.Wait()
	close(ids)
	seen := map[string]bool{}
	for id := range ids {
		_, err := r.Get(id)
		require.NoError(t, err)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
	assert.Equal(t, 50, r.Len())
}
