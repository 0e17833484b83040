package schedule

import "testing"

func TestParseNamedSlots(t *testing.T) {
	cases := []struct {
		label string
		want  HourRange
	}{
		{"morning", HourRange{9, 12}},
		{"AM", HourRange{9, 12}},
		{"上午", HourRange{9, 12}},
		{"afternoon", HourRange{14, 17}},
		{"PM", HourRange{14, 17}},
		{"下午", HourRange{14, 17}},
		{"evening", HourRange{18, 20}},
		{"晚上", HourRange{18, 20}},
		{"  Morning  ", HourRange{9, 12}},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.label)
		if !ok {
			t.Fatalf("Parse(%q): expected parseable", tc.label)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.label, got, tc.want)
		}
	}
}

func TestParseExplicitRanges(t *testing.T) {
	cases := []struct {
		label string
		want  HourRange
	}{
		{"14-16", HourRange{14, 16}},
		{"14:00-16:00", HourRange{14, 16}},
		{"9:30-11:45", HourRange{9, 11}},
		{"8 - 10", HourRange{8, 10}},
		{"0-24", HourRange{0, 24}},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.label)
		if !ok {
			t.Fatalf("Parse(%q): expected parseable", tc.label)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.label, got, tc.want)
		}
	}
}

func TestParseUnparseable(t *testing.T) {
	labels := []string{
		"",
		"   ",
		"whenever",
		"noonish",
		"16-14",
		"10-10",
		"14-25",
		"14:70-16:00",
		"14-16-18",
	}

	for _, label := range labels {
		if got, ok := Parse(label); ok {
			t.Fatalf("Parse(%q) = %+v, expected unparseable", label, got)
		}
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		a, b HourRange
		want bool
	}{
		{HourRange{9, 12}, HourRange{10, 11}, true},
		{HourRange{9, 12}, HourRange{11, 14}, true},
		{HourRange{9, 12}, HourRange{12, 14}, false},
		{HourRange{14, 16}, HourRange{9, 12}, false},
		{HourRange{9, 12}, HourRange{9, 12}, true},
	}

	for _, tc := range cases {
		if got := tc.a.Overlaps(tc.b); got != tc.want {
			t.Fatalf("Overlaps(%+v, %+v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got := tc.b.Overlaps(tc.a); got != tc.want {
			t.Fatalf("Overlaps(%+v, %+v) = %v, want %v", tc.b, tc.a, got, tc.want)
		}
	}
}
