package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openvbs/arena/internal/database/models"
)

type recordingUpdatable struct {
	phase Phase
	name  string
	log   *[]string
	fail  bool
}

func (u *recordingUpdatable) Phase() Phase                    { return u.phase }
func (u *recordingUpdatable) ShouldRun(models.RunStatus) bool { return true }

func (u *recordingUpdatable) Update(time.Time) {
	*u.log = append(*u.log, u.name)
	if u.fail {
		panic("boom")
	}
}

func TestRunUpdatablesPhaseOrder(t *testing.T) {
	var log []string
	updatables := []Updatable{
		&recordingUpdatable{phase: PhaseFinalize, name: "flush", log: &log},
		&recordingUpdatable{phase: PhasePrepare, name: "scores", log: &log},
		&recordingUpdatable{phase: PhaseMain, name: "rules-a", log: &log},
		&recordingUpdatable{phase: PhaseMain, name: "rules-b", log: &log},
	}
	RunUpdatables(updatables, models.RunRunningTask, time.Now())

	// phases first, declaration order within a phase
	assert.Equal(t, []string{"scores", "rules-a", "rules-b", "flush"}, log)
}

func TestRunUpdatablesPanicIsolation(t *testing.T) {
	var log []string
	updatables := []Updatable{
		&recordingUpdatable{phase: PhaseMain, name: "bad", log: &log, fail: true},
		&recordingUpdatable{phase: PhaseMain, name: "good", log: &log},
	}
	assert.NotPanics(t, func() {
		RunUpdatables(updatables, models.RunRunningTask, time.Now())
	})
	assert.Equal(t, []string{"bad", "good"}, log)
}

type statusGatedUpdatable struct {
	recordingUpdatable
	accept models.RunStatus
}

func (u *statusGatedUpdatable) ShouldRun(status models.RunStatus) bool {
	return status == u.accept
}

func TestRunUpdatablesStatusGate(t *testing.T) {
	var log []string
	u := &statusGatedUpdatable{
		recordingUpdatable: recordingUpdatable{phase: PhaseMain, name: "gated", log: &log},
		accept:             models.RunRunningTask,
	}
	RunUpdatables([]Updatable{u}, models.RunActive, time.Now())
	assert.Empty(t, log)
	RunUpdatables([]Updatable{u}, models.RunRunningTask, time.Now())
	assert.Equal(t, []string{"gated"}, log)
}

func TestStatefulUpdatableDirtyFlag(t *testing.T) {
	u := &StatefulUpdatable{}
	now := time.Now()

	assert.False(t, u.shouldAct(now))
	u.MarkDirty()
	assert.True(t, u.Dirty())
	assert.True(t, u.shouldAct(now))
	// acting clears the flag
	assert.False(t, u.shouldAct(now))
}

func TestStatefulUpdatableThrottle(t *testing.T) {
	u := &StatefulUpdatable{interval: 100 * time.Millisecond}
	t0 := time.Now()

	u.MarkDirty()
	assert.True(t, u.shouldAct(t0))

	// dirty again inside the interval: stays pending, does not act
	u.MarkDirty()
	assert.False(t, u.shouldAct(t0.Add(50*time.Millisecond)))
	assert.True(t, u.Dirty())
	assert.True(t, u.shouldAct(t0.Add(150*time.Millisecond)))
}
