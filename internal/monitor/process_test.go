package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/achievement-notifier/backend/internal/session"
)

func TestAppIDFromEnviron(t *testing.T) {
	tests := []struct {
		env    []string
		want   uint32
		wantOK bool
	}{
		{[]string{"HOME=/home/user", "SteamAppId=620"}, 620, true},
		{[]string{"SteamAppId=0"}, 0, false},
		{[]string{"SteamAppId=abc"}, 0, false},
		{[]string{"SteamGameId=620"}, 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := appIDFromEnviron(tt.env)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("appIDFromEnviron(%v) = %d, %v; want %d, %v", tt.env, got, ok, tt.want, tt.wantOK)
		}
	}
}

type scriptedList struct {
	scans [][]GameProcess
	err   error
	i     int
}

func (s *scriptedList) list(context.Context) ([]GameProcess, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.i >= len(s.scans) {
		return s.scans[len(s.scans)-1], nil
	}
	out := s.scans[s.i]
	s.i++
	return out, nil
}

func formatEvents(evs []session.RawLogEvent) []string {
	var out []string
	for _, ev := range evs {
		out = append(out, fmt.Sprintf("%s:%d", ev.Kind, ev.AppID))
	}
	return out
}

func TestProcessScannerDiff(t *testing.T) {
	script := &scriptedList{scans: [][]GameProcess{
		{},
		{{AppID: 620, PID: 10, ExeName: "portal2"}, {AppID: 620, PID: 11, ExeName: "portal2-helper"}},
		{{AppID: 620, PID: 10, ExeName: "portal2"}},
		{{AppID: 440, PID: 20, ExeName: "hl2"}},
		{},
	}}
	s := NewProcessScanner(0)
	s.list = script.list

	var got []session.RawLogEvent
	emit := func(ev session.RawLogEvent) { got = append(got, ev) }
	for range script.scans {
		s.scan(context.Background(), emit)
	}

	want := []string{"added:620", "removed:620", "added:440", "removed:440"}
	if fmt.Sprint(formatEvents(got)) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", formatEvents(got), want)
	}
	if got[0].PID != 10 || got[0].ExeName != "portal2" {
		t.Errorf("added event = %+v, want lowest PID", got[0])
	}
}

func TestProcessScannerErrorKeepsState(t *testing.T) {
	script := &scriptedList{scans: [][]GameProcess{{{AppID: 1, PID: 1}}}}
	s := NewProcessScanner(0)
	s.list = script.list

	var got []session.RawLogEvent
	emit := func(ev session.RawLogEvent) { got = append(got, ev) }
	s.scan(context.Background(), emit)

	script.err = errors.New("permission denied")
	s.scan(context.Background(), emit)

	if len(got) != 1 || len(s.running) != 1 {
		t.Errorf("scan error should not change state: events=%v running=%v", formatEvents(got), s.running)
	}
}
