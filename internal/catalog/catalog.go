// Package catalog holds the static lists served to clients: supported
// summary languages and the browsable category tree.
package catalog

import "slices"

// Language is a summary language. Code doubles as the filename suffix.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languages = []Language{
	{"english", "English"},
	{"spanish", "Spanish"},
	{"french", "French"},
	{"hindi", "Hindi"},
	{"german", "German"},
	{"italian", "Italian"},
	{"portuguese", "Portuguese"},
	{"russian", "Russian"},
	{"japanese", "Japanese"},
	{"chinese", "Chinese"},
	{"korean", "Korean"},
	{"arabic", "Arabic"},
	{"dutch", "Dutch"},
	{"swedish", "Swedish"},
	{"turkish", "Turkish"},
	{"polish", "Polish"},
	{"ukrainian", "Ukrainian"},
	{"vietnamese", "Vietnamese"},
	{"thai", "Thai"},
	{"indonesian", "Indonesian"},
	{"greek", "Greek"},
	{"czech", "Czech"},
	{"romanian", "Romanian"},
	{"danish", "Danish"},
	{"finnish", "Finnish"},
	{"norwegian", "Norwegian"},
	{"hebrew", "Hebrew"},
	{"farsi", "Farsi"},
	{"malay", "Malay"},
	{"swahili", "Swahili"},
}

// Languages returns a copy of the supported languages.
func Languages() []Language {
	return slices.Clone(languages)
}

// LanguageCodes returns the codes of all supported languages in display order.
func LanguageCodes() []string {
	codes := make([]string, len(languages))
	for i, l := range languages {
		codes[i] = l.Code
	}
	return codes
}

// IsSupportedLanguage reports whether code is a known language code.
func IsSupportedLanguage(code string) bool {
	return slices.ContainsFunc(languages, func(l Language) bool { return l.Code == code })
}

// Category is a node of the browse tree. Code is a Google Books subject query.
type Category struct {
	Name          string     `json:"name"`
	Code          string     `json:"code"`
	Subcategories []Category `json:"subcategories,omitempty"`
}

var categories = []Category{
	{
		Name: "Fiction",
		Code: "fiction",
		Subcategories: []Category{
			{
				Name: "Literature",
				Code: "literary+fiction",
				Subcategories: []Category{
					{Name: "Literary Fiction", Code: "literary+fiction"},
					{Name: "Classics", Code: "classic+literature"},
					{Name: "Historical Fiction", Code: "historical+fiction"},
					{Name: "Short Stories", Code: "short+stories"},
					{Name: "Women's Fiction", Code: "womens+fiction"},
					{Name: "Men's Fiction", Code: "mens+fiction"},
				},
			},
		},
	},
	{
		Name: "Non-Fiction",
		Code: "nonfiction",
		Subcategories: []Category{
			{
				Name: "Self-Help",
				Code: "self-help",
				Subcategories: []Category{
					{Name: "Personal Development", Code: "personal+development"},
					{Name: "Motivation", Code: "motivation+self-help"},
					{Name: "Mindfulness and Meditation", Code: "mindfulness+meditation"},
				},
			},
		},
	},
}

// Categories returns the category tree.
func Categories() []Category {
	return slices.Clone(categories)
}

// FindCategory looks up a category anywhere in the tree by code.
func FindCategory(code string) (Category, bool) {
	return find(categories, code)
}

func find(nodes []Category, code string) (Category, bool) {
	for _, c := range nodes {
		if c.Code == code {
			return c, true
		}
		if found, ok := find(c.Subcategories, code); ok {
			return found, true
		}
	}
	return Category{}, false
}
