package models

import "testing"

func sampleProject() *Project {
	return &Project{
		ID:     "p1",
		Script: []Segment{
			{ID: "s1", VoiceoverText: "  hello "},
			{ID: "s2", VoiceoverText: "world"},
			{ID: "s3", VoiceoverText: "   "},
			{ID: "s4", VoiceoverText: "again"},
		},
		Visuals: []Visual{},
	}
}

func TestAttachVisualReplacesBySegment(t *testing.T) {
	p := sampleProject()
	p.AttachVisual(Visual{URL: "u1", SegmentID: "s1"})
	p.AttachVisual(Visual{URL: "u2", SegmentID: "s2"})
	p.AttachVisual(Visual{URL: "u1-regen", SegmentID: "s1"})

	if len(p.Visuals) != 2 {
		t.Fatalf("expected 2 visuals, got %d", len(p.Visuals))
	}
	if v := p.VisualFor("s1"); v == nil || v.URL != "u1-regen" {
		t.Fatalf("regenerated visual must replace the old one: %+v", v)
	}
	if p.VisualFor("s3") != nil {
		t.Fatal("segment without a visual must return nil")
	}
}

func TestVisualizedCount(t *testing.T) {
	p := sampleProject()
	if p.VisualizedCount() != 0 {
		t.Fatalf("fresh project must count 0, got %d", p.VisualizedCount())
	}
	p.AttachVisual(Visual{URL: "u", SegmentID: "s2"})
	p.AttachVisual(Visual{URL: "u", SegmentID: "s4"})
	// 不属于任何分镜的素材不计数
	p.AttachVisual(Visual{URL: "u", SegmentID: "orphan"})
	if p.VisualizedCount() != 2 {
		t.Fatalf("expected 2, got %d", p.VisualizedCount())
	}
}

func TestNarrationJoinsWithSingleSpaces(t *testing.T) {
	p := sampleProject()
	if got := p.Narration(); got != "hello world again" {
		t.Fatalf("Narration() = %q", got)
	}
}

func TestNarrationEmptyScript(t *testing.T) {
	p := &Project{}
	if got := p.Narration(); got != "" {
		t.Fatalf("expected empty narration, got %q", got)
	}
}

func TestUpsertProject(t *testing.T) {
	list := []Project{{ID: "a", Niche: "x"}, {ID: "b"}}

	list = UpsertProject(list, Project{ID: "a", Niche: "y"})
	if len(list) != 2 {
		t.Fatalf("upsert of existing id must not grow the list: %d", len(list))
	}
	if list[0].Niche != "y" {
		t.Fatalf("existing entry must be replaced: %+v", list[0])
	}

	list = UpsertProject(list, Project{ID: "c"})
	if len(list) != 3 || list[2].ID != "c" {
		t.Fatalf("new entry must be appended: %+v", list)
	}
}

func TestFindProject(t *testing.T) {
	list := []Project{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if i := FindProject(list, "b"); i != 1 {
		t.Fatalf("FindProject(b) = %d, want 1", i)
	}
	if i := FindProject(list, "zz"); i != -1 {
		t.Fatalf("FindProject(zz) = %d, want -1", i)
	}
}

func TestRemoveProjectKeepsOrder(t *testing.T) {
	list := []Project{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	list = RemoveProject(list, "b")
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "c" {
		t.Fatalf("unexpected list after remove: %+v", list)
	}
	// 删除不存在的 id 等于 no-op
	list = RemoveProject(list, "zz")
	if len(list) != 2 {
		t.Fatalf("removing unknown id must not change the list: %+v", list)
	}
}
