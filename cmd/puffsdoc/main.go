// Command puffsdoc renders base.AllStatuses() to an HTML reference page:
// one heading per status, grouped by kind (note/suspension/error), each
// with a stable anchor so other documentation can link straight to e.g.
// "#bad-huffman-code". Built the same way as a script that drives
// blackfriday.Run with a custom Renderer to rewrite or collect data out of
// rendered Markdown; this command builds the Markdown source itself
// instead of reading it from a file, then runs the identical
// Markdown-to-HTML pipeline plus an extra anchor-tagging pass.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/shurcooL/sanitized_anchor_name"
	blackfriday "gopkg.in/russross/blackfriday.v2"

	"github.com/wuffsgo/puffs/base"
)

func main() {
	out := flag.String("out", "", "file to write the generated HTML to (default: stdout)")
	flag.Parse()

	md := buildMarkdown(base.AllStatuses())
	html := render(md)

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(html); err != nil {
		log.Fatal(err)
	}
}

// statusKind buckets a status by its id's leading sigil, matching
// Status.IsNote/IsSuspension/IsError's own discriminant.
func statusKind(s base.Status) string {
	switch {
	case s.IsError():
		return "Errors"
	case s.IsSuspension():
		return "Suspensions"
	case s.IsNote():
		return "Notes"
	default:
		return "Other"
	}
}

// buildMarkdown groups every registered status by kind and emits one
// section per kind, one heading per status, sorted within each section so
// the output is stable across runs despite AllStatuses ranging over a map.
func buildMarkdown(statuses []base.Status) []byte {
	byKind := map[string][]base.Status{}
	for _, s := range statuses {
		byKind[statusKind(s)] = append(byKind[statusKind(s)], s)
	}

	var buf bytes.Buffer
	buf.WriteString("# Status reference\n\n")
	for _, kind := range []string{"Notes", "Suspensions", "Errors"} {
		section := byKind[kind]
		if len(section) == 0 {
			continue
		}
		sort.Slice(section, func(i, j int) bool { return section[i].ID() < section[j].ID() })
		fmt.Fprintf(&buf, "## %s\n\n", kind)
		for _, s := range section {
			fmt.Fprintf(&buf, "### `%s`\n\n", s.ID())
			fmt.Fprintf(&buf, "%s\n\n", describe(s))
		}
	}
	return buf.Bytes()
}

// describe turns a status id into a sentence. Format-specific ids already
// read as "pkg: what went wrong" (e.g. "#deflate: bad Huffman code"); this
// just drops the sigil and capitalizes the rest so it reads as prose.
func describe(s base.Status) string {
	id := strings.TrimLeft(s.ID(), "$@#")
	if id == "" {
		return "No error."
	}
	return strings.ToUpper(id[:1]) + id[1:] + "."
}

func render(md []byte) []byte {
	r := &anchoredRenderer{underlying: blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{})}
	return blackfriday.Run(md, blackfriday.WithRenderer(r))
}

// anchoredRenderer wraps blackfriday's stock HTML renderer to stamp every
// heading with a sanitized_anchor_name id, following the same
// Renderer-wrapping pattern print-markdown-links.go uses (there, to collect
// link targets instead of to rewrite headings).
type anchoredRenderer struct {
	underlying blackfriday.Renderer
	seen       map[string]int
}

func (r *anchoredRenderer) RenderHeader(w io.Writer, n *blackfriday.Node) {
	r.underlying.RenderHeader(w, n)
}

func (r *anchoredRenderer) RenderFooter(w io.Writer, n *blackfriday.Node) {
	r.underlying.RenderFooter(w, n)
}

func (r *anchoredRenderer) RenderNode(w io.Writer, n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
	if n.Type == blackfriday.Heading && entering {
		if r.seen == nil {
			r.seen = map[string]int{}
		}
		text := headingText(n)
		anchor := sanitized_anchor_name.Create(text)
		if count := r.seen[anchor]; count > 0 {
			anchor = fmt.Sprintf("%s-%d", anchor, count)
		}
		r.seen[anchor]++
		fmt.Fprintf(w, "<h%d id=%q>", n.HeadingData.Level, anchor)
		for c := n.FirstChild; c != nil; c = c.Next {
			r.underlying.RenderNode(w, c, true)
			r.underlying.RenderNode(w, c, false)
		}
		fmt.Fprintf(w, "</h%d>\n", n.HeadingData.Level)
		return blackfriday.SkipChildren
	}
	return r.underlying.RenderNode(w, n, entering)
}

func headingText(n *blackfriday.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.Next {
		buf.Write(c.Literal)
	}
	return buf.String()
}
