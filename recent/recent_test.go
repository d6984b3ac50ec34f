package recent

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/user-none/emuframework/statecodec"
)

func paths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestAddOrdersNewestFirst(t *testing.T) {
	l := New()
	l.Add("/roms/a.nes", "")
	l.Add("/roms/b.nes", "Game B")
	l.Add("/roms/c.nes", "")
	l.Add("/roms/a.nes", "")

	got := strings.Join(paths(l.Entries()), ",")
	if got != "/roms/a.nes,/roms/c.nes,/roms/b.nes" {
		t.Errorf("order = %s", got)
	}
	if l.Entries()[0].Name != "a.nes" {
		t.Errorf("default name = %q", l.Entries()[0].Name)
	}
	if l.Entries()[2].Name != "Game B" {
		t.Errorf("name = %q", l.Entries()[2].Name)
	}
}

func TestBoundedCapacity(t *testing.T) {
	l := New()
	for i := 0; i < DefaultMaxEntries+5; i++ {
		l.Add(fmt.Sprintf("/roms/%d.nes", i), "")
	}
	if l.Len() != DefaultMaxEntries {
		t.Fatalf("Len = %d, want %d", l.Len(), DefaultMaxEntries)
	}
	if l.Entries()[0].Path != "/roms/14.nes" {
		t.Errorf("newest = %s", l.Entries()[0].Path)
	}

	l.SetMaxEntries(3)
	want := "/roms/14.nes,/roms/13.nes,/roms/12.nes"
	if got := strings.Join(paths(l.Entries()), ","); got != want {
		t.Errorf("after shrink = %s, want %s", got, want)
	}
}

func TestSetMaxEntriesClamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-4, 1},
		{50, 50},
		{500, MaxEntries},
	}
	for _, tt := range tests {
		l := New()
		l.SetMaxEntries(tt.in)
		if l.MaxEntries() != tt.want {
			t.Errorf("SetMaxEntries(%d) -> %d, want %d", tt.in, l.MaxEntries(), tt.want)
		}
	}
}

func TestRemoveMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/roms/keep.nes", []byte{1}, 0644)

	l := New()
	l.Add("/roms/gone.nes", "")
	l.Add("/roms/keep.nes", "")
	if n := l.RemoveMissing(fs); n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if l.Len() != 1 || l.Entries()[0].Path != "/roms/keep.nes" {
		t.Errorf("entries = %v", l.Entries())
	}
}

func TestConfigRoundTrip(t *testing.T) {
	l := New()
	l.SetMaxEntries(20)
	l.Add("/roms/one.nes", "One")
	l.Add("/roms/two.nes", "Two")
	l.Add("/roms/three.nes", "")

	var buf bytes.Buffer
	if err := l.WriteConfig(&buf); err != nil {
		t.Fatal(err)
	}

	got := New()
	if err := statecodec.ReadRecords(&buf, got.ReadConfig); err != nil {
		t.Fatal(err)
	}
	if got.MaxEntries() != 20 {
		t.Errorf("MaxEntries = %d", got.MaxEntries())
	}
	want := l.Entries()
	have := got.Entries()
	if len(have) != len(want) {
		t.Fatalf("read %d entries, want %d", len(have), len(want))
	}
	for i := range want {
		if have[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, have[i], want[i])
		}
	}
}

func TestReadConfigSkipsBadEntry(t *testing.T) {
	var buf bytes.Buffer
	// Path length claims 10 bytes but only 2 follow.
	statecodec.WriteRecord(&buf, statecodec.KeyRecentContentV2, []byte{10, 0, 'a', 'b'})
	l := New()
	l.Add("/roms/x.nes", "")
	good := bytes.Buffer{}
	l.WriteConfig(&good)
	buf.Write(good.Bytes())

	got := New()
	if err := statecodec.ReadRecords(&buf, got.ReadConfig); err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 || got.Entries()[0].Path != "/roms/x.nes" {
		t.Errorf("entries = %v", got.Entries())
	}
}

func TestWriteConfigSkipsOversizedEntry(t *testing.T) {
	l := New()
	l.Add("/roms/ok.nes", "OK")
	l.Add("/"+strings.Repeat("p", statecodec.MaxPayload-5), "Name")

	var buf bytes.Buffer
	if err := l.WriteConfig(&buf); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	got := New()
	if err := statecodec.ReadRecords(&buf, got.ReadConfig); err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 || got.Entries()[0].Path != "/roms/ok.nes" {
		t.Errorf("entries = %v", paths(got.Entries()))
	}
}
