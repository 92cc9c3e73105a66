package notify

import (
	"bytes"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownToTelegramHTML converts a Markdown draft to Telegram-safe HTML.
// Telegram HTML supports <b>, <i>, <s>, <code>, <pre> and <a href="">; the
// AST walk guarantees well-formed tags, which raw Markdown parse_mode does
// not.
func markdownToTelegramHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	src := []byte(markdown)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	r := &tgRenderer{src: src}
	r.renderChildren(&buf, doc)

	return strings.TrimRight(buf.String(), "\n")
}

type tgRenderer struct {
	src []byte
}

func (r *tgRenderer) renderChildren(w *bytes.Buffer, node ast.Node) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		r.renderNode(w, child)
	}
}

func (r *tgRenderer) renderNode(w *bytes.Buffer, node ast.Node) {
	switch n := node.(type) {
	case *ast.Paragraph:
		r.renderChildren(w, n)
		w.WriteString("\n\n")

	case *ast.Heading:
		w.WriteString("<b>")
		r.renderChildren(w, n)
		w.WriteString("</b>\n\n")

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.WriteString("<pre><code>")
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			w.WriteString(html.EscapeString(string(line.Value(r.src))))
		}
		w.WriteString("</code></pre>\n\n")

	case *ast.List:
		r.renderList(w, n)

	case *ast.ListItem:
		r.renderChildren(w, n)

	case *ast.Text:
		w.WriteString(html.EscapeString(string(n.Segment.Value(r.src))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.WriteString("\n")
		}

	case *ast.String:
		w.WriteString(html.EscapeString(string(n.Value)))

	case *ast.CodeSpan:
		w.WriteString("<code>")
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				w.WriteString(html.EscapeString(string(t.Segment.Value(r.src))))
			}
		}
		w.WriteString("</code>")

	case *ast.Emphasis:
		tag := "i"
		if n.Level == 2 {
			tag = "b"
		}
		w.WriteString("<" + tag + ">")
		r.renderChildren(w, n)
		w.WriteString("</" + tag + ">")

	case *ast.Link:
		w.WriteString("<a href=\"")
		w.WriteString(html.EscapeString(string(n.Destination)))
		w.WriteString("\">")
		r.renderChildren(w, n)
		w.WriteString("</a>")

	case *ast.AutoLink:
		url := html.EscapeString(string(n.URL(r.src)))
		w.WriteString("<a href=\"" + url + "\">" + url + "</a>")

	default:
		r.renderChildren(w, node)
	}
}

func (r *tgRenderer) renderList(w *bytes.Buffer, list *ast.List) {
	idx := list.Start
	for child := list.FirstChild(); child != nil; child = child.NextSibling() {
		if list.IsOrdered() {
			w.WriteString(strconv.Itoa(idx) + ". ")
			idx++
		} else {
			w.WriteString("• ")
		}
		var item bytes.Buffer
		r.renderChildren(&item, child)
		w.WriteString(strings.TrimRight(item.String(), "\n"))
		w.WriteString("\n")
	}
	w.WriteString("\n")
}
