package search

import (
	"bufio"
	"strings"
)

// Facts flattens generated markdown into standalone lines of text.
//
// Table rows become one fact each with their cells joined by spaces; header
// separator rows are dropped. Headings and list markers are stripped. Other
// lines are kept as they are, one fact per line, and blank lines are skipped.
func Facts(markdown string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(markdown))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	inFence := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if line == "" {
			continue
		}
		if !inFence && strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			if row := tableRow(line); row != "" {
				out = append(out, row)
			}
			continue
		}
		if !inFence {
			line = stripMarkers(line)
		}
		if line != "" {
			out = append(out, normalizeSpaces(line))
		}
	}
	return out
}

// tableRow joins the non-empty cells of a table row. Separator rows yield "".
func tableRow(line string) string {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	kept := make([]string, 0, len(cells))
	sep := true
	for _, c := range cells {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":- ") != "" {
			sep = false
		}
		if cell != "" {
			kept = append(kept, cell)
		}
	}
	if sep {
		return ""
	}
	return strings.Join(kept, " ")
}

func stripMarkers(line string) string {
	line = strings.TrimLeft(line, "#>")
	line = strings.TrimSpace(line)
	for _, p := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):])
		}
	}
	return line
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
