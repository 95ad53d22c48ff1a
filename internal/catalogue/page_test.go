package catalogue

import "testing"

func TestPage_Title_FallsBackToURL(t *testing.T) {
	t.Parallel()

	p := Page{URL: "http://example.onion/"}
	if got := p.Title(); got != p.URL {
		t.Errorf("Title() = %q, want fallback to URL %q", got, p.URL)
	}

	title := "Example Page"
	p.PageTitle = &title
	if got := p.Title(); got != title {
		t.Errorf("Title() = %q, want %q", got, title)
	}

	empty := ""
	p.PageTitle = &empty
	if got := p.Title(); got != p.URL {
		t.Errorf("Title() with empty title = %q, want fallback to URL %q", got, p.URL)
	}
}

func TestPage_Description(t *testing.T) {
	t.Parallel()

	p := Page{MetaTags: []MetaTag{{Key: "keywords", Value: "a,b"}, {Key: "description", Value: "about"}}}
	if got := p.Description(); got != "about" {
		t.Errorf("Description() = %q, want %q", got, "about")
	}

	p2 := Page{MetaTags: []MetaTag{{Key: "keywords", Value: "a,b"}}}
	if got := p2.Description(); got != "" {
		t.Errorf("Description() = %q, want empty", got)
	}
}
