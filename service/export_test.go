package service

import (
	"strings"
	"testing"
)

func TestExportFileName(t *testing.T) {
	cases := map[string]string{
		"My Cool Video":        "My_Cool_Video_inflow.webm",
		"  trimmed  ":          "trimmed_inflow.webm",
		"ok-name_123":          "ok-name_123_inflow.webm",
		"标题!!!":                "untitled_inflow.webm",
		"":                     "untitled_inflow.webm",
		"a/b\\c:d":             "a_b_c_d_inflow.webm",
		"___leading_trailing_": "leading_trailing_inflow.webm",
	}
	for in, want := range cases {
		if got := ExportFileName(in); got != want {
			t.Errorf("ExportFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlannedDuration(t *testing.T) {
	if got := PlannedDuration(5, 1.0); got != 5.0 {
		t.Errorf("PlannedDuration(5, 1.0) = %v, want 5", got)
	}
	if got := PlannedDuration(3, 2.5); got != 7.5 {
		t.Errorf("PlannedDuration(3, 2.5) = %v, want 7.5", got)
	}
	if got := PlannedDuration(0, 1.0); got != 0 {
		t.Errorf("PlannedDuration(0, 1.0) = %v, want 0", got)
	}
}

func TestBuildConcatList(t *testing.T) {
	frames := []string{"/tmp/a/frame_000.png", "/tmp/a/frame_001.jpg"}
	list := buildConcatList(frames, 1.5)

	lines := strings.Split(strings.TrimRight(list, "\n"), "\n")
	want := []string{
		"file '/tmp/a/frame_000.png'",
		"duration 1.500",
		"file '/tmp/a/frame_001.jpg'",
		"duration 1.500",
		// concat demuxer 需要末帧重复一行 file
		"file '/tmp/a/frame_001.jpg'",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), list)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestBuildConcatListEmpty(t *testing.T) {
	if got := buildConcatList(nil, 1.0); got != "" {
		t.Fatalf("expected empty list, got %q", got)
	}
}

func TestExtByURL(t *testing.T) {
	cases := map[string]string{
		"http://minio:9000/inflow/projects/p/segments/s.jpg?X-Amz-Signature=abc": ".jpg",
		"http://minio:9000/inflow/a.jpeg": ".jpg",
		"http://minio:9000/inflow/a.webp": ".webp",
		"http://minio:9000/inflow/a.png":  ".png",
		"http://minio:9000/inflow/a":      ".png",
	}
	for in, want := range cases {
		if got := extByURL(in); got != want {
			t.Errorf("extByURL(%q) = %q, want %q", in, got, want)
		}
	}
}
