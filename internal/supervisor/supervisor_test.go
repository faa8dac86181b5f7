package supervisor

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/ajiasud/internal/nodes"
	"github.com/loykin/ajiasud/internal/terminator"
)

// fakeWorld is an in-memory process table the supervisor's collaborator
// hooks operate on, so no real process is ever spawned or signaled.
type fakeWorld struct {
	live     map[int]int64 // pid -> start time
	nextPID  int
	launched []string // "label/protocol" per launch
	killed   []int
}

func newFakeWorld(pids ...int) *fakeWorld {
	w := &fakeWorld{live: map[int]int64{}, nextPID: 1000}
	for i, pid := range pids {
		w.live[pid] = int64(100 + i)
	}
	return w
}

func (w *fakeWorld) scan() []int {
	out := make([]int, 0, len(w.live))
	for pid := range w.live {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}

func (w *fakeWorld) kill(pids []int) terminator.Result {
	res := terminator.Result{Killed: []int{}, Errors: []terminator.KillError{}}
	for _, pid := range pids {
		if _, ok := w.live[pid]; ok {
			delete(w.live, pid)
			w.killed = append(w.killed, pid)
			res.Killed = append(res.Killed, pid)
		}
	}
	return res
}

func (w *fakeWorld) launch(label, protocol string) (int, error) {
	w.nextPID++
	w.live[w.nextPID] = time.Now().Unix()
	w.launched = append(w.launched, label+"/"+protocol)
	return w.nextPID, nil
}

func newTestSupervisor(t *testing.T, w *fakeWorld, labels ...string) *Supervisor {
	t.Helper()
	catalog := nodes.NewCatalog()
	ns := make([]nodes.Node, 0, len(labels))
	for _, l := range labels {
		ns = append(ns, nodes.Node{ID: l, Label: l, Status: "OK"})
	}
	catalog.Replace(ns, nodes.Summary{})
	s := New(Config{Catalog: catalog, Logger: slog.Default()})
	s.scan = w.scan
	s.kill = w.kill
	s.launch = w.launch
	s.ensureBin = func() error { return nil }
	s.alive = func(pid int) bool { _, ok := w.live[pid]; return ok }
	s.startUnix = func(pid int) int64 { return w.live[pid] }
	s.settleDelay = 0
	return s
}

func TestEnforceSingleNeverReducesBelowOne(t *testing.T) {
	w := newFakeWorld()
	s := newTestSupervisor(t, w)

	res := s.EnforceSingle(0)
	require.Empty(t, res.Found)
	require.Nil(t, res.Kept)
	require.Empty(t, res.Killed)

	w = newFakeWorld(42)
	s = newTestSupervisor(t, w)
	res = s.EnforceSingle(0)
	require.Equal(t, []int{42}, res.Found)
	require.NotNil(t, res.Kept)
	require.Equal(t, 42, *res.Kept)
	require.Empty(t, res.Killed)
	require.Empty(t, w.killed)
}

func TestEnforceSinglePrefersRequestedPID(t *testing.T) {
	w := newFakeWorld(10, 20, 30)
	s := newTestSupervisor(t, w)

	res := s.EnforceSingle(20)
	require.Equal(t, 20, *res.Kept)
	require.ElementsMatch(t, []int{10, 30}, res.Killed)
	require.Equal(t, []int{20}, w.scan())
}

func TestEnforceSingleFallsBackToBeliefThenNewest(t *testing.T) {
	w := newFakeWorld(10, 20, 30)
	s := newTestSupervisor(t, w)
	s.setCurrent(&Connection{PID: 10, Label: "x"})

	res := s.EnforceSingle(999) // prefer pid absent from the inventory
	require.Equal(t, 10, *res.Kept)

	// no belief: keep the latest start time
	w = newFakeWorld(10, 20, 30) // start times 100, 101, 102
	s = newTestSupervisor(t, w)
	res = s.EnforceSingle(0)
	require.Equal(t, 30, *res.Kept)
}

func TestEnforceSingleBreaksStartTimeTiesByLargestPID(t *testing.T) {
	w := newFakeWorld()
	w.live = map[int]int64{10: 100, 20: 100, 30: 100}
	s := newTestSupervisor(t, w)

	res := s.EnforceSingle(0)
	require.Equal(t, 30, *res.Kept)
	require.ElementsMatch(t, []int{10, 20}, res.Killed)
}

func TestKillAllConnectsIsIdempotent(t *testing.T) {
	w := newFakeWorld(5, 6)
	s := newTestSupervisor(t, w)
	s.setCurrent(&Connection{PID: 5})

	first := s.KillAllConnects("test")
	require.ElementsMatch(t, []int{5, 6}, first.Killed)
	require.Nil(t, s.Current())

	second := s.KillAllConnects("test")
	require.Empty(t, second.Found)
	require.Empty(t, second.Killed)
}

func TestHealLaunchesWhenEmptyAndBacksOff(t *testing.T) {
	w := newFakeWorld()
	s := newTestSupervisor(t, w, "node-a", "node-b")

	res := s.EnsureOne("test")
	require.True(t, res.OK)
	require.Equal(t, "node-a", res.Label)
	require.Equal(t, []string{"node-a/lwip"}, w.launched)

	// simulate the fresh process dying immediately
	delete(w.live, res.PID)

	res = s.EnsureOne("test")
	require.False(t, res.OK)
	require.Equal(t, "backoff", res.Skipped)

	s.lastHeal = time.Now().Add(-time.Minute)
	res = s.EnsureOne("test")
	require.True(t, res.OK)
}

func TestHealSkipsWhenInventoryOccupied(t *testing.T) {
	w := newFakeWorld(77)
	s := newTestSupervisor(t, w, "node-a")

	res := s.EnsureOne("test")
	require.True(t, res.OK)
	require.Equal(t, []int{77}, res.Existing)
	require.Empty(t, w.launched)
}

func TestHealPrefersBelievedLabel(t *testing.T) {
	w := newFakeWorld()
	s := newTestSupervisor(t, w, "node-a", "node-b")
	s.setCurrent(&Connection{PID: 1, Label: "node-b"})

	res := s.EnsureOne("test")
	require.True(t, res.OK)
	require.Equal(t, "node-b", res.Label)
}

func TestConnectValidation(t *testing.T) {
	w := newFakeWorld()
	s := newTestSupervisor(t, w, "node-a")
	ctx := context.Background()

	_, err := s.Connect(ctx, "", "lwip")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = s.Connect(ctx, "node-a", "carrier-pigeon")
	require.ErrorAs(t, err, &verr)

	_, err = s.Connect(ctx, "not-listed", "lwip")
	require.ErrorAs(t, err, &verr)
	require.Empty(t, w.launched)
}

func TestConnectClearsThenLaunches(t *testing.T) {
	w := newFakeWorld(5, 6)
	s := newTestSupervisor(t, w, "node-a")

	res, err := s.Connect(context.Background(), "node-a", "")
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, "lwip", res.Protocol)
	require.ElementsMatch(t, []int{5, 6}, w.killed)
	require.Equal(t, []int{res.PID}, w.scan())

	cur := s.Current()
	require.NotNil(t, cur)
	require.Equal(t, res.PID, cur.PID)
	require.Equal(t, "node-a", cur.Label)
	require.True(t, cur.Alive)
}

func TestDisconnectAlwaysHealsBack(t *testing.T) {
	w := newFakeWorld(9)
	s := newTestSupervisor(t, w, "node-a")

	res := s.Disconnect()
	require.Equal(t, []int{9}, res.Killed)
	require.NotNil(t, res.Heal)
	require.True(t, res.Heal.OK)
	require.Len(t, w.scan(), 1)
}

func TestGracefulDisconnectPrefersClientThenFallsBack(t *testing.T) {
	w := newFakeWorld(9)
	s := newTestSupervisor(t, w, "node-a")
	s.setCurrent(&Connection{PID: 9, Label: "node-a"})
	s.clientDisconnect = func(ctx context.Context) (string, string, error) {
		return "disconnected\n", "", nil
	}

	res := s.GracefulDisconnect(context.Background())
	require.True(t, res.OK)
	require.Equal(t, "cli", res.Via)
	require.Nil(t, s.Current())
	require.Empty(t, w.killed) // the client shut itself down, no signals sent

	// client failure falls back to the unconditional clear
	s.setCurrent(&Connection{PID: 9, Label: "node-a"})
	s.clientDisconnect = func(ctx context.Context) (string, string, error) {
		return "", "boom", context.DeadlineExceeded
	}
	res = s.GracefulDisconnect(context.Background())
	require.True(t, res.OK)
	require.Equal(t, "kill", res.Via)
	require.NotNil(t, res.Fallback)
	require.Equal(t, []int{9}, res.Fallback.Killed)
}

func TestRotateTickAdvancesToNextLabel(t *testing.T) {
	w := newFakeWorld()
	s := newTestSupervisor(t, w)
	s.listRaw = func(ctx context.Context) (string, int, error) {
		return "id1 OK Tokyo #1\nid2 OK Osaka #2\nid3 OK Seoul #3\n", 0, nil
	}
	pid, err := s.launch("Tokyo #1", "lwip")
	require.NoError(t, err)
	s.setCurrent(&Connection{PID: pid, Label: "Tokyo #1"})

	s.rotateTick()

	cur := s.Current()
	require.NotNil(t, cur)
	require.Equal(t, "Osaka #2", cur.Label)
	require.Contains(t, w.killed, pid)

	s.rotateTick()
	require.Equal(t, "Seoul #3", s.Current().Label)

	s.rotateTick()
	require.Equal(t, "Tokyo #1", s.Current().Label)
}

func TestRotateTickSkipsWhenRefreshFails(t *testing.T) {
	w := newFakeWorld(3)
	s := newTestSupervisor(t, w, "node-a")
	s.listRaw = func(ctx context.Context) (string, int, error) {
		return "", 1, context.DeadlineExceeded
	}
	s.setCurrent(&Connection{PID: 3, Label: "node-a"})

	s.rotateTick()
	require.Equal(t, []int{3}, w.scan())
	require.Empty(t, w.launched)
}

func TestWatchdogHealsEmptyAndEnforcesCrowded(t *testing.T) {
	w := newFakeWorld()
	s := newTestSupervisor(t, w, "node-a")

	s.watchdogTick()
	require.Len(t, w.scan(), 1)

	w.live[50] = 999999
	s.watchdogTick()
	require.Len(t, w.scan(), 1)
}

func TestStartupClearsAndHeals(t *testing.T) {
	w := newFakeWorld(7, 8)
	s := newTestSupervisor(t, w, "node-a")
	s.setCurrent(&Connection{PID: 7, Label: "stale"})

	res := s.Startup()
	require.ElementsMatch(t, []int{7, 8}, res.Killed)
	require.NotNil(t, res.Heal)
	require.True(t, res.Heal.OK)
	require.Equal(t, "node-a", res.Heal.Label)
}

func TestStartStopBackground(t *testing.T) {
	w := newFakeWorld(1)
	s := newTestSupervisor(t, w, "node-a")
	s.watchdogEvery = 10 * time.Millisecond

	s.StartBackground()
	s.StartBackground() // second call is a no-op
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop()
}
