package bandit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    []string
	}{
		{
			name:    "plain tags",
			caption: "sunset walk #catsofinstagram #dogs",
			want:    []string{"catsofinstagram", "dogs"},
		},
		{
			name:    "punctuation splits tokens",
			caption: "love it! #cats,#dogs. #cats",
			want:    []string{"cats", "dogs"},
		},
		{
			name:    "tag glued to text is not a tag",
			caption: "check this#cats out",
			want:    nil,
		},
		{
			name:    "single char tag dropped",
			caption: "#a #ab",
			want:    []string{"ab"},
		},
		{
			name:    "bare hash dropped",
			caption: "what # even #",
			want:    nil,
		},
		{
			name:    "underscores and digits kept",
			caption: "#cat_pics_2024 rules",
			want:    []string{"cat_pics_2024"},
		},
		{
			name:    "duplicates keep first occurrence order",
			caption: "#b #a #b #a",
			want:    []string{"b", "a"},
		},
		{
			name:    "empty caption",
			caption: "",
			want:    nil,
		},
		{
			name:    "no tags at all",
			caption: "just a normal caption",
			want:    nil,
		},
		{
			name:    "newlines split tokens",
			caption: "caption\n#first\n#second",
			want:    []string{"first", "second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHashtags(tt.caption))
		})
	}
}
