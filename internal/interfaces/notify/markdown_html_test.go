package notify

import (
	"strings"
	"testing"
)

func TestMarkdownToTelegramHTML_Empty(t *testing.T) {
	if got := markdownToTelegramHTML(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestMarkdownToTelegramHTML_Emphasis(t *testing.T) {
	got := markdownToTelegramHTML("This is **bold** and *italic*.")
	if !strings.Contains(got, "<b>bold</b>") {
		t.Fatalf("strong should render as <b>: %q", got)
	}
	if !strings.Contains(got, "<i>italic</i>") {
		t.Fatalf("emphasis should render as <i>: %q", got)
	}
}

func TestMarkdownToTelegramHTML_Heading(t *testing.T) {
	got := markdownToTelegramHTML("# Refund policy\n\nDetails follow.")
	if !strings.Contains(got, "<b>Refund policy</b>") {
		t.Fatalf("heading should render bold: %q", got)
	}
}

func TestMarkdownToTelegramHTML_Code(t *testing.T) {
	got := markdownToTelegramHTML("Run `careloop review` or:\n\n```\ncurl /health\n```")
	if !strings.Contains(got, "<code>careloop review</code>") {
		t.Fatalf("inline code should render as <code>: %q", got)
	}
	if !strings.Contains(got, "<pre><code>curl /health\n</code></pre>") {
		t.Fatalf("code block should render as <pre><code>: %q", got)
	}
}

func TestMarkdownToTelegramHTML_EscapesText(t *testing.T) {
	got := markdownToTelegramHTML("Use a < b && c > d")
	if strings.Contains(got, "a < b") {
		t.Fatalf("angle brackets must be escaped: %q", got)
	}
	if !strings.Contains(got, "a &lt; b") || !strings.Contains(got, "c &gt; d") {
		t.Fatalf("expected escaped entities: %q", got)
	}
}

func TestMarkdownToTelegramHTML_Lists(t *testing.T) {
	got := markdownToTelegramHTML("- first\n- second\n\n1. one\n2. two")
	if !strings.Contains(got, "• first") || !strings.Contains(got, "• second") {
		t.Fatalf("bullet list should render with bullets: %q", got)
	}
	if !strings.Contains(got, "1. one") || !strings.Contains(got, "2. two") {
		t.Fatalf("ordered list should keep numbering: %q", got)
	}
}

func TestMarkdownToTelegramHTML_Links(t *testing.T) {
	got := markdownToTelegramHTML("See [the docs](https://example.com/docs).")
	if !strings.Contains(got, `<a href="https://example.com/docs">the docs</a>`) {
		t.Fatalf("link should render as <a>: %q", got)
	}
}
