package subtitle

import "testing"

func TestTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{59.999, "00:00:59,999"},
		{61.25, "00:01:01,250"},
		{3600, "01:00:00,000"},
		{3725.5, "01:02:05,500"},
		{7322.0009, "02:02:02,000"}, // below 1ms truncates
		{-3, "00:00:00,000"},
	}
	for _, tc := range cases {
		if got := Timestamp(tc.seconds); got != tc.want {
			t.Errorf("Timestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatEmpty(t *testing.T) {
	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
	if got := Format([]Segment{}); got != "" {
		t.Errorf("Format(empty) = %q, want empty", got)
	}
}

func TestFormatSingleSegment(t *testing.T) {
	got := Format([]Segment{{Start: 0, End: 1.5, Text: " hi "}})
	want := "1\n00:00:00,000 --> 00:00:01,500\nhi\n\n"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatMultipleSegments(t *testing.T) {
	got := Format([]Segment{
		{Start: 0, End: 2, Text: "first"},
		{Start: 2, End: 4.75, Text: "second\n"},
	})
	want := "1\n00:00:00,000 --> 00:00:02,000\nfirst\n\n" +
		"2\n00:00:02,000 --> 00:00:04,750\nsecond\n\n"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}
