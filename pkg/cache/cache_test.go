package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/fruitsalade/remsh/pkg/listing"
)

type countingLister struct {
	listings map[string]string
	err      error
	calls    map[string]int
}

func newCountingLister() *countingLister {
	return &countingLister{
		listings: map[string]string{
			"/":       "> Listing \"/\"... DONE\n[D] - photos\n[F] 3 a.txt\n",
			"/photos": "> Listing \"/photos\"... DONE\n[F] 10 cat.jpg\n",
		},
		calls: make(map[string]int),
	}
}

func (l *countingLister) List(ctx context.Context, dir string) (string, error) {
	l.calls[dir]++
	if l.err != nil {
		return "", l.err
	}
	return l.listings[dir], nil
}

func TestGet_FetchOnMissOnce(t *testing.T) {
	l := newCountingLister()
	c := New(l)
	ctx := context.Background()

	first, err := c.Get(ctx, "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get(ctx, "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("second Get returned a different snapshot")
	}
	if l.calls["/"] != 1 {
		t.Errorf("fetches = %d, want 1", l.calls["/"])
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Fetches != 1 || s.Entries != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestGet_KeysAreCleaned(t *testing.T) {
	l := newCountingLister()
	c := New(l)
	ctx := context.Background()

	for _, p := range []string{"/photos", "/photos/", "/photos/.", "/x/../photos", "photos"} {
		if _, err := c.Get(ctx, p); err != nil {
			t.Fatalf("Get(%q): %v", p, err)
		}
	}
	if l.calls["/photos"] != 1 {
		t.Errorf("fetches = %d, want 1", l.calls["/photos"])
	}
}

func TestInvalidate_Refetches(t *testing.T) {
	l := newCountingLister()
	c := New(l)
	ctx := context.Background()

	c.Get(ctx, "/")
	c.Invalidate("/")
	if c.Cached("/") {
		t.Error("entry still cached after Invalidate")
	}
	if _, err := c.Get(ctx, "/"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if l.calls["/"] != 2 {
		t.Errorf("fetches = %d, want 2", l.calls["/"])
	}
}

func TestInvalidate_Idempotent(t *testing.T) {
	c := New(newCountingLister())
	c.Invalidate("/nowhere")
	c.Invalidate("/nowhere")
	if c.Stats().Invalidations != 0 {
		t.Errorf("Invalidations = %d, want 0 for absent keys", c.Stats().Invalidations)
	}
}

func TestForceRefresh_BypassesCache(t *testing.T) {
	l := newCountingLister()
	c := New(l)
	ctx := context.Background()

	c.Get(ctx, "/")
	l.listings["/"] = "> Listing \"/\"... DONE\n[F] 1 new.txt\n"
	snap, err := c.ForceRefresh(ctx, "/")
	if err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if !snap.Has("new.txt") || snap.Has("a.txt") {
		t.Error("ForceRefresh did not replace the snapshot")
	}
	if l.calls["/"] != 2 {
		t.Errorf("fetches = %d, want 2", l.calls["/"])
	}
	if again, _ := c.Get(ctx, "/"); again != snap {
		t.Error("Get after ForceRefresh did not return the refreshed snapshot")
	}
}

func TestGet_BackendErrorLeavesCacheUntouched(t *testing.T) {
	l := newCountingLister()
	c := New(l)
	ctx := context.Background()

	l.err = errors.New("backend down")
	if _, err := c.Get(ctx, "/"); err == nil {
		t.Fatal("expected error")
	}
	if c.Cached("/") {
		t.Error("failed fetch left an entry")
	}
}

func TestGet_MalformedLeavesOldEntry(t *testing.T) {
	l := newCountingLister()
	c := New(l)
	ctx := context.Background()

	old, _ := c.Get(ctx, "/")
	l.listings["/"] = "garbage"
	_, err := c.ForceRefresh(ctx, "/")
	if !errors.Is(err, listing.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if got, _ := c.Get(ctx, "/"); got != old {
		t.Error("malformed refresh replaced the previous snapshot")
	}
}

func TestEntriesAndInvalidateAll(t *testing.T) {
	c := New(newCountingLister())
	ctx := context.Background()
	c.Get(ctx, "/photos")
	c.Get(ctx, "/")

	entries := c.Entries()
	if len(entries) != 2 || entries[0].Path != "/" || entries[1].Path != "/photos" {
		t.Fatalf("Entries = %+v", entries)
	}
	if entries[0].Count != 2 || entries[0].Size != 3 {
		t.Errorf("root entry = %+v", entries[0])
	}

	if n := c.InvalidateAll(); n != 2 {
		t.Errorf("InvalidateAll = %d, want 2", n)
	}
	if len(c.Entries()) != 0 {
		t.Error("entries remain after InvalidateAll")
	}
}
