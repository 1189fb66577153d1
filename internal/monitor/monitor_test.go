package monitor_test

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/brain/internal/changes"
	"github.com/starford/brain/internal/monitor"
	"github.com/starford/brain/internal/notify"
	"github.com/starford/brain/internal/testutil"
)

type recordingSender struct {
	sent   []notify.ChangeSet
	onSend func()
}

func (s *recordingSender) Send(_ context.Context, cs notify.ChangeSet) {
	s.sent = append(s.sent, cs)
	if s.onSend != nil {
		s.onSend()
	}
}

type fixture struct {
	root   string
	clock  *testutil.Clock
	sender *recordingSender
	mon    *monitor.Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root, fs := testutil.TestRoot(t)
	clock := testutil.NewClock(time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC))
	det, err := changes.NewDetector(root, filepath.Join(root, ".brain", "state.json"), changes.WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	sender := &recordingSender{}
	mon, err := monitor.New(fs, det, monitor.WithSender(sender), monitor.WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{root: root, clock: clock, sender: sender, mon: mon}
}

func contextDoc(version, shipFactor int, body string) string {
	return "---\ntitle: Tech Stack\nversion: " + strconv.Itoa(version) + "\nship_factor: " + strconv.Itoa(shipFactor) + "\n---\n\n" + body
}

func TestRun_NothingToReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cs, err := f.mon.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 0 {
		t.Fatalf("absent resources reported as changed: %+v", cs)
	}
	if len(f.sender.sent) != 0 {
		t.Error("nothing should be sent")
	}
	matches, _ := filepath.Glob(filepath.Join(f.root, "*.md"))
	if len(matches) != 0 {
		t.Errorf("unexpected outputs: %v", matches)
	}
}

func TestRun_RecordsChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.WriteFile(t, f.root, "ai/context/tech-stack.md", contextDoc(1, 5, "Go and SQLite.\n"))

	cs, err := f.mon.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 1 || cs[0].Name != "tech-stack" {
		t.Fatalf("changes = %+v", cs)
	}
	if cs[0].Current.Title != "Tech Stack" || cs[0].Current.Version != 1 {
		t.Errorf("snapshot = %+v", cs[0].Current)
	}

	log := testutil.ReadFile(t, f.root, "CHANGELOG.md")
	for _, want := range []string{
		"# Changelog\n",
		"## Context Updates - 2026-03-04 10:30:00",
		"### Tech Stack Context",
		"- **File**: `ai/context/tech-stack.md`",
		"- **Version**: 1 → 1",
		"- **Size**: 0 → ",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("changelog missing %q:\n%s", want, log)
		}
	}

	summary := testutil.ReadFile(t, f.root, "CONTEXT-UPDATE-SUMMARY.md")
	if !strings.HasPrefix(summary, "# Context Files Update Summary\n*Generated: 2026-03-04 10:30:00*") {
		t.Errorf("summary = %q", summary)
	}
	if len(f.sender.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(f.sender.sent))
	}

	again, err := f.mon.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second run reported %+v", again)
	}
	if len(f.sender.sent) != 1 {
		t.Error("second run should not notify")
	}
}

func TestRun_NewestEntryFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.WriteFile(t, f.root, "ai/context/tech-stack.md", contextDoc(1, 5, "Go.\n"))
	if _, err := f.mon.Run(ctx); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Minute)
	testutil.WriteFile(t, f.root, "ai/context/tech-stack.md", contextDoc(2, 8, strings.Repeat("More detail. ", 20)+"\n"))
	cs, err := f.mon.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 1 {
		t.Fatalf("changes = %+v", cs)
	}
	want := []string{"version bump", "ship factor change", "significant content change"}
	if diff := cmp.Diff(want, monitor.Significant(cs[0])); diff != "" {
		t.Errorf("significant mismatch (-want +got):\n%s", diff)
	}

	log := testutil.ReadFile(t, f.root, "CHANGELOG.md")
	newer := strings.Index(log, "10:31:00")
	older := strings.Index(log, "10:30:00")
	if newer < 0 || older < 0 || newer > older {
		t.Errorf("entries out of order:\n%s", log)
	}
	if !strings.Contains(log, "- **Version**: 1 → 2") || !strings.Contains(log, "- **Ship Factor**: 5 → 8") {
		t.Errorf("changelog missing transitions:\n%s", log)
	}
	if !strings.Contains(log, "- **Significant Changes**: version bump, ship factor change, significant content change") {
		t.Errorf("changelog missing significant changes:\n%s", log)
	}
}

func TestCheck_DoesNotRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.WriteFile(t, f.root, "ai/context/infrastructure.md", "# Infra\n")

	for i := 0; i < 2; i++ {
		cs, err := f.mon.Check(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(cs) != 1 || cs[0].Name != "infrastructure" {
			t.Fatalf("check %d = %+v", i, cs)
		}
	}
	if len(f.sender.sent) != 0 {
		t.Error("check must not notify")
	}
}

func TestForceUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.WriteFile(t, f.root, "ai/context/infrastructure.md", "# Infra\n")

	got, err := f.mon.ForceUpdate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"infrastructure"}, got); diff != "" {
		t.Errorf("updated mismatch (-want +got):\n%s", diff)
	}
	cs, err := f.mon.Check(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 0 {
		t.Errorf("changes after force update = %+v", cs)
	}
	matches, _ := filepath.Glob(filepath.Join(f.root, "*.md"))
	if len(matches) != 0 {
		t.Errorf("force update wrote reports: %v", matches)
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.root, "ai/context/tech-stack.md", contextDoc(1, 5, "Go.\n"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sender.onSend = cancel

	done := make(chan error, 1)
	go func() { done <- f.mon.Watch(ctx, time.Hour) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop")
	}
	if len(f.sender.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(f.sender.sent))
	}
	cs, err := f.mon.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 0 {
		t.Errorf("watch run did not record state: %+v", cs)
	}
}

func TestWatch_RunsTickHook(t *testing.T) {
	root, fs := testutil.TestRoot(t)
	det, err := changes.NewDetector(root, filepath.Join(root, ".brain", "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	mon, err := monitor.New(fs, det, monitor.WithOnTick(func(context.Context) error {
		ticks++
		cancel()
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := mon.Watch(ctx, time.Hour); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticks)
	}
}

func TestSummary(t *testing.T) {
	cs := notify.ChangeSet{{
		Name:    "infrastructure",
		Path:    "ai/context/infrastructure.md",
		Current: changes.Snapshot{Size: 12, Lines: 1},
	}}
	got := monitor.Summary(cs, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	want := "# Context Files Update Summary\n" +
		"*Generated: 2026-01-02 03:04:05*\n\n" +
		"## Infrastructure\n" +
		"- **File**: `ai/context/infrastructure.md`\n" +
		"- **Title**: N/A\n" +
		"- **Version**: 1\n" +
		"- **Ship Factor**: 5\n" +
		"- **Size**: 12 bytes\n" +
		"- **Lines**: 1\n\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}
