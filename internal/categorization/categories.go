package categorization

import (
	"strings"

	"meridian/internal/core"
)

// Descriptor describes an article category
type Descriptor struct {
	Name        core.Category
	Description string
}

// DefaultCategories returns the fixed category set in prompt order
func DefaultCategories() []Descriptor {
	return []Descriptor{
		{Name: core.CategoryNews, Description: "General news articles"},
		{Name: core.CategoryBlog, Description: "Blog posts or opinion pieces"},
		{Name: core.CategoryResearch, Description: "Research papers or technical studies"},
		{Name: core.CategoryNodeJS, Description: "Node.js related content"},
		{Name: core.CategoryTypeScript, Description: "TypeScript related content"},
		{Name: core.CategoryTutorial, Description: "Tutorials or how-to guides"},
		{Name: core.CategoryOther, Description: "Content that doesn't fit other categories"},
	}
}

// Lookup returns the descriptor for name, or nil if name is not a known category
func Lookup(name string) *Descriptor {
	for _, d := range DefaultCategories() {
		if string(d.Name) == name {
			return &d
		}
	}
	return nil
}

// IsValid reports whether name is one of the fixed categories.
func IsValid(name string) bool {
	return Lookup(name) != nil
}

// PromptList renders the categories as the "- name: description" lines the
// classification prompt lists.
func PromptList() string {
	var b strings.Builder
	for i, d := range DefaultCategories() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(string(d.Name))
		b.WriteString(": ")
		b.WriteString(d.Description)
	}
	return b.String()
}
