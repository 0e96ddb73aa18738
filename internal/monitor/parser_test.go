package monitor

import (
	"testing"

	"github.com/achievement-notifier/backend/internal/session"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want session.RawLogEvent
		ok   bool
	}{
		{
			name: "Added",
			line: `Game process added : AppID 620 "C:\Games\Portal 2\portal2.exe", ProcID 4242, IP 0.0.0.0:0`,
			want: session.RawLogEvent{Kind: session.Added, AppID: 620, ExeName: `C:\Games\Portal 2\portal2.exe`, PID: 4242},
			ok:   true,
		},
		{
			name: "Removed",
			line: `Game process removed: AppID 620 "portal2.exe", ProcID 4242`,
			want: session.RawLogEvent{Kind: session.Removed, AppID: 620, ExeName: "portal2.exe", PID: 4242},
			ok:   true,
		},
		{
			name: "TimestampPrefix",
			line: `[2026-01-30 10:00:00] Game process added : AppID 1145360 "Hades.exe", ProcID 77, IP 0.0.0.0:0`,
			want: session.RawLogEvent{Kind: session.Added, AppID: 1145360, ExeName: "Hades.exe", PID: 77},
			ok:   true,
		},
		{
			name: "CollapsedWhitespace",
			line: "[2026-01-30 10:00:00]   Game  process\tremoved:  AppID  10 \"hl.exe\",   ProcID  3",
			want: session.RawLogEvent{Kind: session.Removed, AppID: 10, ExeName: "hl.exe", PID: 3},
			ok:   true,
		},
		{
			name: "AddedWithoutIP",
			line: `Game process added : AppID 10 "hl.exe", ProcID 3`,
			want: session.RawLogEvent{Kind: session.Added, AppID: 10, ExeName: "hl.exe", PID: 3},
			ok:   true,
		},
		{
			name: "QuoteInName",
			line: `Game process added : AppID 10 "my "best" game.exe", ProcID 3, IP 1.2.3.4:5`,
			want: session.RawLogEvent{Kind: session.Added, AppID: 10, ExeName: `my "best" game.exe`, PID: 3},
			ok:   true,
		},
		{name: "WrongCase", line: `game process added : AppID 10 "hl.exe", ProcID 3`},
		{name: "MissingSpaceBeforeColon", line: `Game process added: AppID 10 "hl.exe", ProcID 3`},
		{name: "NegativeAppID", line: `Game process added : AppID -10 "hl.exe", ProcID 3`},
		{name: "Overflow", line: `Game process added : AppID 99999999999 "hl.exe", ProcID 3`},
		{name: "NonNumericPID", line: `Game process removed: AppID 10 "hl.exe", ProcID abc`},
		{name: "PIDSuffix", line: `Game process removed: AppID 10 "hl.exe", ProcID 3x`},
		{name: "Unrelated", line: `[2026-01-30 10:00:00] AppID 620 state changed : Fully Installed,`},
		{name: "Empty", line: ``},
		{name: "GarbagePrefix", line: `xx Game process added : AppID 10 "hl.exe", ProcID 3`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}
