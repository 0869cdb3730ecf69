package ingestion

import "testing"

func TestParseChapter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		raw       string
		wantTitle string
		wantBody  string
	}{
		{
			name:      "heading title",
			path:      "docs/module-1/ros2-basics.md",
			raw:       "# ROS 2 Basics\n\n## Nodes\n  Nodes are processes.  \n\nTopics carry messages.\n",
			wantTitle: "ROS 2 Basics",
			wantBody:  "Nodes are processes.\nTopics carry messages.",
		},
		{
			name:      "front matter wins over heading",
			path:      "intro.md",
			raw:       "---\ntitle: Introduction to Physical AI\nsidebar_position: 1\n---\n# Intro\nEmbodied agents act in the world.\n",
			wantTitle: "Introduction to Physical AI",
			wantBody:  "Embodied agents act in the world.",
		},
		{
			name:      "file stem fallback",
			path:      "/tmp/kinematics.md",
			raw:       "Forward kinematics maps joint angles to poses.",
			wantTitle: "kinematics",
			wantBody:  "Forward kinematics maps joint angles to poses.",
		},
		{
			name:      "unterminated front matter stays in body",
			path:      "odd.md",
			raw:       "---\ntitle: Odd\nbody text",
			wantTitle: "odd",
			wantBody:  "---\ntitle: Odd\nbody text",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ch := ParseChapter(tc.path, []byte(tc.raw))
			if ch.Title != tc.wantTitle {
				t.Errorf("Title = %q, want %q", ch.Title, tc.wantTitle)
			}
			if ch.Content != tc.wantBody {
				t.Errorf("Content = %q, want %q", ch.Content, tc.wantBody)
			}
		})
	}
}

func TestChapterMetadata(t *testing.T) {
	t.Parallel()

	ch := ParseChapter("docs/humanoid-locomotion.md", []byte("# Humanoid Locomotion\nWalking needs balance."))
	md := ch.Metadata()

	want := map[string]string{
		"title":       "Humanoid Locomotion",
		"source_file": "humanoid-locomotion.md",
		"section":     "humanoid-locomotion",
		"type":        DocTypeTextbook,
		"source_id":   "Humanoid_Locomotion",
	}
	for k, v := range want {
		if md[k] != v {
			t.Errorf("metadata[%q] = %q, want %q", k, md[k], v)
		}
	}
}
