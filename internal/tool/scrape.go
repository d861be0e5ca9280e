package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultScrapeTimeout = 10 * time.Second
	maxScrapeChars       = 20000
	// Pages larger than this are cut off before parsing
	maxScrapeBody = 10 << 20
)

// Some sites refuse requests without browser-looking headers.
var scrapeHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// NewWebScraper returns the web_scraper tool: fetch a page and extract text,
// HTML, or links from elements matched by a simple selector.
//
// Recoverable input problems (bad URL, unknown selector, non-HTML content)
// come back as plain result text the model can react to; only transport and
// parse failures are reported as errors.
func NewWebScraper() *Tool {
	return &Tool{
		Name: "web_scraper",
		Description: "Scrape content from websites. This tool can extract text, HTML, or links " +
			"from a webpage. Use it to gather information from online sources for analysis or " +
			"reference.",
		InputSchema: Schema{
			Properties: map[string]Property{
				"url": {
					Type:        "string",
					Description: "The complete URL of the website to scrape (must include http:// or https://).",
				},
				"params": {
					Type:        "object",
					Description: "Optional parameters to customize the scraping behavior.",
					Properties: map[string]Property{
						"selector": {
							Type: "string",
							Description: "Selector to target specific elements: a tag name, .class, or #id " +
								"(e.g. 'h1', '.main-article', 'div.content'). Defaults to 'body'.",
						},
						"extract": {
							Type: "string",
							Enum: []string{"text", "html", "links"},
							Description: "What to extract: 'text' (plain text), 'html' (HTML markup), or " +
								"'links' (all hyperlinks). Defaults to 'text'.",
						},
						"timeout": {
							Type:        "number",
							Description: "Request timeout in seconds. Defaults to 10 seconds.",
						},
					},
				},
			},
			Required: []string{"url"},
		},
		Run: scrape,
	}
}

func scrape(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		URL    string `json:"url"`
		Params struct {
			Selector string  `json:"selector"`
			Extract  string  `json:"extract"`
			Timeout  float64 `json:"timeout"`
		} `json:"params"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("ERROR: invalid input: %v", err)
	}

	selector := in.Params.Selector
	if selector == "" {
		selector = "body"
	}
	extract := in.Params.Extract
	if extract == "" {
		extract = "text"
	}
	timeout := defaultScrapeTimeout
	if in.Params.Timeout > 0 {
		timeout = time.Duration(in.Params.Timeout * float64(time.Second))
	}

	if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
		return "Invalid URL format. URL must start with http:// or https://", nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, in.URL, nil)
	if err != nil {
		return "", fmt.Errorf("Request failed: %v", err)
	}
	for key, value := range scrapeHeaders {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("Request failed: %s", resp.Status)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "The URL does not return HTML content", nil
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxScrapeBody))
	if err != nil {
		return "", fmt.Errorf("Error scraping website: %v", err)
	}

	var elements []*html.Node
	if selector != "body" {
		elements = selectNodes(doc, parseSelector(selector))
		if len(elements) == 0 {
			return fmt.Sprintf("No elements found matching selector: %s", selector), nil
		}
	} else {
		if body := findElement(doc, "body"); body != nil {
			elements = []*html.Node{body}
		} else {
			elements = []*html.Node{doc}
		}
	}

	var result string
	switch extract {
	case "text":
		parts := make([]string, 0, len(elements))
		for _, el := range elements {
			parts = append(parts, nodeText(el))
		}
		result = strings.Join(parts, "\n\n")
	case "html":
		parts := make([]string, 0, len(elements))
		for _, el := range elements {
			var buf bytes.Buffer
			if err := html.Render(&buf, el); err != nil {
				return "", fmt.Errorf("Error scraping website: %v", err)
			}
			parts = append(parts, buf.String())
		}
		result = strings.Join(parts, "\n\n")
	case "links":
		links := collectLinks(elements)
		out, err := json.MarshalIndent(links, "", "  ")
		if err != nil {
			return "", fmt.Errorf("Error scraping website: %v", err)
		}
		result = string(out)
	default:
		return fmt.Sprintf("Unsupported extraction type: %s", extract), nil
	}

	return truncateScrape(result), nil
}

// cssSelector is the supported subset: a tag name, a .class, an #id, or a
// tag qualified by a single class or id.
type cssSelector struct {
	tag   string
	class string
	id    string
}

func parseSelector(s string) cssSelector {
	var sel cssSelector
	if i := strings.IndexAny(s, ".#"); i >= 0 {
		sel.tag = s[:i]
		if s[i] == '.' {
			sel.class = s[i+1:]
		} else {
			sel.id = s[i+1:]
		}
	} else {
		sel.tag = s
	}
	return sel
}

func (sel cssSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && n.Data != sel.tag {
		return false
	}
	if sel.id != "" && attrValue(n, "id") != sel.id {
		return false
	}
	if sel.class != "" && !hasClass(attrValue(n, "class"), sel.class) {
		return false
	}
	return true
}

func selectNodes(root *html.Node, sel cssSelector) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if sel.matches(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

// nodeText flattens an element into readable text: trimmed text nodes joined
// with single spaces, script and style bodies skipped.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

type pageLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

func collectLinks(elements []*html.Node) []pageLink {
	links := []pageLink{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attrValue(n, "href"); href != "" {
				links = append(links, pageLink{Text: nodeText(n), Href: href})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, el := range elements {
		walk(el)
	}
	return links
}

func truncateScrape(s string) string {
	runes := []rune(s)
	if len(runes) <= maxScrapeChars {
		return s
	}
	return string(runes[:maxScrapeChars]) + "... [content truncated due to size]"
}
