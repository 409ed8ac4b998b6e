package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type noopJob struct{ name string }

func (j *noopJob) Name() string                  { return j.name }
func (j *noopJob) Run(ctx context.Context) error { return nil }

func TestSchedulerRegister(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Register(&noopJob{name: "queue_worker"}, "* * * * *"))
	require.NoError(t, s.Register(&noopJob{name: "cache_maintenance"}, "0 * * * *"))
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	s := NewScheduler()
	err := s.Register(&noopJob{name: "broken"}, "not a cron line")
	require.ErrorContains(t, err, "register task broken")
}

func TestSchedulerRejectsSecondsField(t *testing.T) {
	// The parser is 5-field; a 6-field expression with seconds must not slip
	// through and fire 60x more often than intended.
	s := NewScheduler()
	err := s.Register(&noopJob{name: "too_fine"}, "* * * * * *")
	require.Error(t, err)
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Register(&noopJob{name: "idle"}, "* * * * *"))
	s.Stop()
}
