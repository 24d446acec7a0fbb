package constants

import "testing"

func TestIsTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusQueued:    false,
		JobStatusRunning:   false,
		JobStatusRetrying:  false,
		JobStatusDone:      true,
		JobStatusFailed:    true,
		JobStatusError:     true,
		JobStatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal(): expected %v, got %v", status, want, got)
		}
	}
	if len(AllJobStatuses()) != len(terminal) {
		t.Errorf("AllJobStatuses should enumerate every status")
	}
}

func TestNormalizeExt(t *testing.T) {
	tests := []struct{ in, want string }{
		{".CSV", "csv"},
		{"xlsx", "xlsx"},
		{".Xls", "xls"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeExt(tt.in); got != tt.want {
			t.Errorf("NormalizeExt(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
