package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-05-01T10:00:00Z", want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2024-05-01T10:00:00+02:00", want: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{in: "2024-05-01T10:00:00.123456", want: time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.Local)},
		{in: "2024-05-01T10:00:00", want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)},
		{in: "2024-05-01", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)},
		{in: ""},
		{in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got.Time, tt.want)
			}
		})
	}
}

func TestTimestampJSON(t *testing.T) {
	var meta Metadata
	if err := json.Unmarshal([]byte(`{"created":"2024-05-01T10:00:00.5","modified":null}`), &meta); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if meta.Created.Nanosecond() != 500000000 || !meta.Modified.IsZero() {
		t.Errorf("unexpected metadata %+v", meta)
	}

	out, err := json.Marshal(Metadata{Created: NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["created"] != "2024-05-01T10:00:00Z" {
		t.Errorf("created written as %v", raw["created"])
	}
}
