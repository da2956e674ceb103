package siteconfig

// Defaults returns the configurations seeded into an empty store.
func Defaults() Bundle {
	return Bundle{
		"www.bloomberg.com": {
			Name: "Bloomberg",
			Selectors: Selectors{
				{Field: "title", Selector: "h1"},
				{Field: "content", Selector: "article, .article-body, .story-body"},
				{Field: "author", Selector: ".author, .byline"},
				{Field: "publishDate", Selector: "time, .timestamp"},
			},
		},
	}
}
