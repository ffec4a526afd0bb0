package isotime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"utc", "2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"offset", "2026-03-01T17:00:00+07:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"js iso", "2026-03-01T10:00:00.123Z", time.Date(2026, 3, 1, 10, 0, 0, 123e6, time.UTC)},
		{"zoneless", "2026-03-01T10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)},
		{"dotnet ticks", "2026-03-01T10:00:00.1234567", time.Date(2026, 3, 1, 10, 0, 0, 123456700, time.Local)},
		{"date only", "2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.Local {
				t.Errorf("Parse(%q) location = %v, want Local", tt.in, got.Location())
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("yesterday"); err == nil {
		t.Error("Parse(yesterday) should fail")
	}
}

func TestFormat(t *testing.T) {
	in := time.Date(2026, 3, 1, 17, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	if got := Format(in); got != "2026-03-01T10:00:00.000Z" {
		t.Errorf("Format = %q", got)
	}
}

func TestTimeJSON(t *testing.T) {
	var v struct {
		At    Time `json:"at"`
		Empty Time `json:"empty"`
	}
	if err := json.Unmarshal([]byte(`{"at":"2026-03-01T10:00:00Z","empty":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if !v.At.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("At = %v", v.At)
	}
	if !v.Empty.IsZero() {
		t.Errorf("Empty = %v, want zero", v.Empty)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"at":"2026-03-01T10:00:00.000Z","empty":null}` {
		t.Errorf("Marshal = %s", out)
	}
}
