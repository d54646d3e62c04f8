package convert

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/spacedown/spacedown/internal/model"
)

// attachmentsDir is how a page's index.md refers to its own attachment
// directory.
const attachmentsDir = "./attachments"

// preprocess rewrites Confluence storage-format elements in place so the
// generic HTML-to-Markdown pass only sees ordinary HTML:
//
//   - ac:image with ri:attachment becomes an img pointing into the page's
//     attachments directory, using the planned on-disk filename
//   - ac:link with ri:page becomes a relative link when the target page is
//     part of the export, plain text otherwise
//   - drawio macros become a note pointing at the exported .drawio file
//   - code macros become pre/code so fenced blocks survive conversion
//   - remaining macros are unwrapped to their body content
//   - plain img and anchor elements referencing an attachment by filename
//     or download URL are repointed at the attachments directory
func (c *Converter) preprocess(doc *html.Node, n *model.Node, rep *model.ExportReport) {
	planned := make(map[string]string, len(n.Attachments))
	byURL := make(map[string]string, len(n.Attachments))
	for _, pa := range n.Attachments {
		planned[pa.Ref.Filename] = pa.Name
		if pa.Ref.DownloadURL == "" {
			continue
		}
		byURL[pa.Ref.DownloadURL] = pa.Name
		if c.siteURL != "" && strings.HasPrefix(pa.Ref.DownloadURL, "/") {
			byURL[c.siteURL+pa.Ref.DownloadURL] = pa.Name
		}
	}

	var images, links, macros, plain []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "ac:image":
				images = append(images, node)
			case "ac:link":
				links = append(links, node)
			case "ac:structured-macro":
				macros = append(macros, node)
			case "img", "a":
				plain = append(plain, node)
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(doc)

	// Macros first: unwrapping a macro keeps the links and images from its
	// body in the tree, where the later passes still hold pointers to them.
	for _, m := range macros {
		if m.Parent == nil {
			continue
		}
		rewriteMacro(m, planned)
	}
	for _, img := range images {
		if img.Parent == nil {
			continue
		}
		rewriteImage(img, n, planned, rep)
	}
	for _, l := range links {
		if l.Parent == nil {
			continue
		}
		c.rewriteLink(l, n, planned, rep)
	}

	// Plain HTML references show up in bodies pasted as raw HTML or
	// migrated from the old wiki markup; they carry the site's download
	// URL or the bare filename instead of an ac:image element.
	for _, node := range plain {
		if node.Parent == nil {
			continue
		}
		key := "src"
		if node.Data == "a" {
			key = "href"
		}
		if local, ok := localAttachmentPath(attrValue(node, key), planned, byURL); ok {
			setAttr(node, key, local)
		}
	}
}

// localAttachmentPath resolves a src or href value to the page's local
// attachments directory when it references a planned attachment, either by
// download URL (raw or resolved against the site) or by filename. Query
// strings and fragments are ignored; Confluence appends version parameters
// to download links.
func localAttachmentPath(ref string, planned, byURL map[string]string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if name, ok := byURL[ref]; ok {
		return attachmentsDir + "/" + name, true
	}

	trimmed := ref
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if name, ok := byURL[trimmed]; ok {
		return attachmentsDir + "/" + name, true
	}

	// A bare filename, or a download link whose exact URL form differs
	// from the one the API reported, still matches on its final path
	// segment. External URLs that merely share a filename stay untouched.
	if !strings.Contains(trimmed, "/") || strings.Contains(trimmed, "/download/") {
		base := path.Base(trimmed)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		if name, ok := planned[base]; ok {
			return attachmentsDir + "/" + name, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func rewriteImage(node *html.Node, page *model.Node, planned map[string]string, rep *model.ExportReport) {
	alt := attrValue(node, "ac:alt")
	if alt == "" {
		alt = attrValue(node, "ac:title")
	}

	var src string
	switch {
	case findElement(node, "ri:attachment") != nil:
		filename := attrValue(findElement(node, "ri:attachment"), "ri:filename")
		if name, ok := planned[filename]; ok {
			src = attachmentsDir + "/" + name
		} else {
			// Referenced but not attached to this page; the file will not
			// exist locally.
			src = attachmentsDir + "/" + filename
			if rep != nil {
				rep.AddUnresolvedLink(model.UnresolvedLink{
					PageID:    page.Page.ID,
					PageTitle: page.Page.Title,
					Target:    filename,
				})
			}
		}
		if alt == "" {
			alt = filename
		}
	case findElement(node, "ri:url") != nil:
		src = attrValue(findElement(node, "ri:url"), "ri:value")
	}

	if src == "" {
		node.Parent.RemoveChild(node)
		return
	}

	img := element(atom.Img, "img", html.Attribute{Key: "src", Val: src})
	if alt != "" {
		img.Attr = append(img.Attr, html.Attribute{Key: "alt", Val: alt})
	}
	replaceNode(node, img)
}

func (c *Converter) rewriteLink(node *html.Node, page *model.Node, planned map[string]string, rep *model.ExportReport) {
	label := linkLabel(node)

	if ref := findElement(node, "ri:page"); ref != nil {
		title := attrValue(ref, "ri:content-title")
		if label == "" {
			label = title
		}
		if targetDir, ok := c.titleToPath[title]; ok {
			href := path.Join(relativeDir(page.Path, targetDir), "index.md")
			a := element(atom.A, "a", html.Attribute{Key: "href", Val: href})
			a.AppendChild(textNode(label))
			replaceNode(node, a)
			return
		}
		if rep != nil {
			rep.AddUnresolvedLink(model.UnresolvedLink{
				PageID:    page.Page.ID,
				PageTitle: page.Page.Title,
				Target:    title,
			})
		}
		replaceNode(node, textNode(label))
		return
	}

	if ref := findElement(node, "ri:attachment"); ref != nil {
		filename := attrValue(ref, "ri:filename")
		if label == "" {
			label = filename
		}
		if name, ok := planned[filename]; ok {
			a := element(atom.A, "a", html.Attribute{Key: "href", Val: attachmentsDir + "/" + name})
			a.AppendChild(textNode(label))
			replaceNode(node, a)
			return
		}
		if rep != nil {
			rep.AddUnresolvedLink(model.UnresolvedLink{
				PageID:    page.Page.ID,
				PageTitle: page.Page.Title,
				Target:    filename,
			})
		}
		replaceNode(node, textNode(label))
		return
	}

	// No resolvable target; keep whatever text the link carried.
	if label != "" {
		replaceNode(node, textNode(label))
		return
	}
	node.Parent.RemoveChild(node)
}

func rewriteMacro(node *html.Node, planned map[string]string) {
	switch attrValue(node, "ac:name") {
	case "drawio":
		rewriteDrawioMacro(node, planned)
	case "code":
		rewriteCodeMacro(node)
	default:
		unwrapMacro(node)
	}
}

// rewriteDrawioMacro leaves a note where a draw.io diagram was embedded.
// The diagram itself is a page attachment and cannot be rendered offline;
// the .drawio file is downloaded unmodified alongside the other
// attachments, so the note points there.
func rewriteDrawioMacro(node *html.Node, planned map[string]string) {
	p := element(atom.P, "p")
	p.AppendChild(textNode("\U0001F4CA "))
	strong := element(atom.Strong, "strong")
	strong.AppendChild(textNode("Draw.io diagram"))
	p.AppendChild(strong)

	if name, ok := diagramAttachment(macroParameter(node, "diagramName"), planned); ok {
		p.AppendChild(textNode(" - see "))
		a := element(atom.A, "a", html.Attribute{Key: "href", Val: attachmentsDir + "/" + name})
		a.AppendChild(textNode(name))
		p.AppendChild(a)
	} else {
		p.AppendChild(textNode(" - see the attachments folder for the .drawio file"))
	}

	quote := element(atom.Blockquote, "blockquote")
	quote.AppendChild(p)
	replaceNode(node, quote)
}

// diagramAttachment matches a drawio macro's diagram name against the
// attachment plan. The plugin stores the attachment either under the bare
// diagram name or with a .drawio extension.
func diagramAttachment(diagram string, planned map[string]string) (string, bool) {
	if diagram == "" {
		return "", false
	}
	for _, candidate := range []string{diagram, diagram + ".drawio"} {
		if name, ok := planned[candidate]; ok {
			return name, true
		}
	}
	return "", false
}

func rewriteCodeMacro(node *html.Node) {
	code := element(atom.Code, "code")
	if lang := macroParameter(node, "language"); lang != "" {
		code.Attr = append(code.Attr, html.Attribute{Key: "class", Val: "language-" + lang})
	}
	if body := findElement(node, "ac:plain-text-body"); body != nil {
		code.AppendChild(textNode(textContent(body)))
	}
	pre := element(atom.Pre, "pre")
	pre.AppendChild(code)
	replaceNode(node, pre)
}

// unwrapMacro replaces an unhandled macro with its body content. Parameters
// are plugin configuration, not content, and are dropped so values like
// panel colors do not leak into the Markdown.
func unwrapMacro(node *html.Node) {
	if body := findElement(node, "ac:rich-text-body"); body != nil {
		for body.FirstChild != nil {
			child := body.FirstChild
			body.RemoveChild(child)
			node.Parent.InsertBefore(child, node)
		}
		node.Parent.RemoveChild(node)
		return
	}
	if body := findElement(node, "ac:plain-text-body"); body != nil {
		code := element(atom.Code, "code")
		code.AppendChild(textNode(textContent(body)))
		pre := element(atom.Pre, "pre")
		pre.AppendChild(code)
		replaceNode(node, pre)
		return
	}
	node.Parent.RemoveChild(node)
}

// linkLabel extracts the visible text of an ac:link body. Rich bodies are
// flattened to text; formatting inside link labels does not survive.
func linkLabel(link *html.Node) string {
	if body := findElement(link, "ac:plain-text-link-body"); body != nil {
		return strings.TrimSpace(textContent(body))
	}
	if body := findElement(link, "ac:link-body"); body != nil {
		return strings.TrimSpace(textContent(body))
	}
	return ""
}

// macroParameter returns the text of the named ac:parameter child.
func macroParameter(macro *html.Node, name string) string {
	for c := macro.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "ac:parameter" && attrValue(c, "ac:name") == name {
			return strings.TrimSpace(textContent(c))
		}
	}
	return ""
}

// textContent collects the text of a subtree. CDATA sections come out of
// the HTML5 parser as comment nodes wrapped in [CDATA[...]]; their payload
// counts as text because Confluence stores code bodies and link labels
// that way.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			b.WriteString(node.Data)
		case html.CommentNode:
			if inner, ok := cdata(node.Data); ok {
				b.WriteString(inner)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func cdata(s string) (string, bool) {
	if strings.HasPrefix(s, "[CDATA[") && strings.HasSuffix(s, "]]") {
		return s[len("[CDATA[") : len(s)-len("]]")], true
	}
	return "", false
}

// findElement returns the first descendant element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func element(a atom.Atom, tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: tag, Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func replaceNode(old, replacement *html.Node) {
	old.Parent.InsertBefore(replacement, old)
	old.Parent.RemoveChild(old)
}

// relativeDir returns the slash path from one export directory to another.
// Both arguments are root-relative as allocated on the forest; "" is the
// export root itself.
func relativeDir(from, to string) string {
	fromParts := splitDir(from)
	toParts := splitDir(to)

	common := 0
	for common < len(fromParts) && common < len(toParts) && fromParts[common] == toParts[common] {
		common++
	}

	parts := make([]string, 0, len(fromParts)-common+len(toParts)-common)
	for range fromParts[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, toParts[common:]...)
	if len(parts) == 0 {
		return "."
	}
	return path.Join(parts...)
}

func splitDir(dir string) []string {
	if dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}
