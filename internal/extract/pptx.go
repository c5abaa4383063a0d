package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePath matches ppt/slides/slideN.xml and captures N.
var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX returns one page per slide ordered by slide number.
func extractPPTX(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	type slide struct {
		n    int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: open %s: %w", f.Name, err)
		}
		var raw bytes.Buffer
		_, err = raw.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: read %s: %w", f.Name, err)
		}
		var parts []string
		for _, p := range atTag.FindAllStringSubmatch(raw.String(), -1) {
			if s := strings.TrimSpace(p[1]); s != "" {
				parts = append(parts, s)
			}
		}
		slides = append(slides, slide{n: n, text: strings.Join(parts, " ")})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })
	pages := make([]string, len(slides))
	for i, s := range slides {
		pages[i] = s.text
	}
	return pages, nil
}
