package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ResolveLink turns the href of an anchor on pageURL into the URL to crawl.
//
// An href starting with "/" is joined with the scheme and host of pageURL,
// and "//host/x" takes the page's scheme. The href text is kept as written:
// only "." and ".." path segments are removed, nothing is escaped or
// unescaped. A fragment href ("#top") or an empty href yields pageURL
// unchanged. Anything else is returned verbatim.
//
// ResolveLink is pure: the same inputs always give the same output. It only
// fails when a "/" href needs a pageURL that cannot be parsed.
func ResolveLink(pageURL, href string) (string, error) {
	switch {
	case href == "":
		return pageURL, nil
	case strings.HasPrefix(href, "//"):
		base, err := url.Parse(pageURL)
		if err != nil {
			return "", fmt.Errorf("failed to parse page URL %q: %w", pageURL, err)
		}
		authority, rest := splitAuthority(href[2:])
		return base.Scheme + "://" + authority + cleanPath(rest), nil
	case strings.HasPrefix(href, "/"):
		base, err := url.Parse(pageURL)
		if err != nil {
			return "", fmt.Errorf("failed to parse page URL %q: %w", pageURL, err)
		}
		authority := base.Host
		if base.User != nil {
			authority = base.User.String() + "@" + authority
		}
		return base.Scheme + "://" + authority + cleanPath(href), nil
	case strings.HasPrefix(href, "#"):
		return pageURL, nil
	default:
		return href, nil
	}
}

// splitAuthority splits "host/path?q" into "host" and "/path?q".
func splitAuthority(s string) (authority, rest string) {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// cleanPath removes dot segments from the path part of ref, leaving the
// query and fragment untouched.
func cleanPath(ref string) string {
	path, suffix := ref, ""
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		path, suffix = ref[:i], ref[i:]
	}
	return removeDotSegments(path) + suffix
}

// removeDotSegments resolves "." and ".." in an absolute path. Empty
// segments are kept, so "/a//b" stays as is.
func removeDotSegments(path string) string {
	if !strings.HasPrefix(path, "/") || !strings.Contains(path, ".") {
		return path
	}

	segments := strings.Split(path[1:], "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	if last := segments[len(segments)-1]; last == "." || last == ".." {
		out = append(out, "")
	}
	return "/" + strings.Join(out, "/")
}

// ExtractHrefs returns the href value of every <a> element carrying an href
// attribute, in document order.
func ExtractHrefs(content io.Reader) ([]string, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	hrefs := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := getAttr(n, "href"); ok {
				hrefs = append(hrefs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return hrefs, nil
}

// LinksOnPage extracts and resolves every link in body, which was fetched
// from pageURL. An empty body has no links.
func LinksOnPage(pageURL, body string) ([]string, error) {
	if body == "" {
		return []string{}, nil
	}

	hrefs, err := ExtractHrefs(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		link, err := ResolveLink(pageURL, href)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

// getAttr retrieves an attribute value and whether it is present.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
