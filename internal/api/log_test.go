package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hexentour/pkg/logging"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "params sorted and long values dropped",
			input: `time=2026-05-02T14:03:11.120+02:00 level=INFO msg="Tour: Station started" station=s04 variant="ar " method=qr payload=https://hexentour.example/station/s04`,
			want:  "14:03:11 Tour: Station started (method=qr, station=s04, variant=ar)",
		},
		{
			name:  "no params",
			input: `time=2026-05-02T14:03:11+02:00 level=WARN msg="Frame: Disconnected"`,
			want:  "14:03:11 Frame: Disconnected",
		},
		{
			name:  "not a slog line",
			input: "plain text",
			want:  "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.want {
				t.Errorf("formatLogLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleLatestEvent(t *testing.T) {
	_, _ = logging.GlobalEventCapture.Write([]byte("[2026-05-02 14:03:11] [scan_accepted] s04 - expected s04\n"))

	rec := httptest.NewRecorder()
	handleLatestEvent(rec, httptest.NewRequest(http.MethodGet, "/api/log/event", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["event"] != "[2026-05-02 14:03:11] [scan_accepted] s04 - expected s04" {
		t.Errorf("event = %q", body["event"])
	}
}
