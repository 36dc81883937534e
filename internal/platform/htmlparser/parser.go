package htmlparser

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

var htmlContentTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

// Parser is a crawler.Parser backed by golang.org/x/net/html. A zero value
// is ready to use.
type Parser struct{}

// New returns a ready-to-use Parser.
func New() *Parser { return &Parser{} }

// ExtractLinks parses body as HTML and returns the raw href attribute of
// every <a> tag, exactly as it appears in the document. baseURL is
// accepted to satisfy crawler.Parser but resolution against it is the
// Normalizer's job, not the parser's. A non-HTML contentType yields an
// empty, non-nil slice rather than an error.
func (p *Parser) ExtractLinks(baseURL string, body io.Reader, contentType string) ([]string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if ct != "" && !htmlContentTypes[ct] {
		return []string{}, nil
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	links := []string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					links = append(links, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}
