package intent

import "strings"

// ExpandParentheses expands "(a|b)" groups into every literal combination.
// Groups may nest and may hold an empty alternative, e.g. "draw (me|) a".
func ExpandParentheses(template string) []string {
	p := &expander{s: template}
	raw := p.sequence(false)

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.Join(strings.Fields(r), " ")
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

type expander struct {
	s   string
	pos int
}

func (p *expander) sequence(inGroup bool) []string {
	results := []string{""}
	var lit strings.Builder

	flush := func() {
		if lit.Len() == 0 {
			return
		}
		for i := range results {
			results[i] += lit.String()
		}
		lit.Reset()
	}

	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '(':
			flush()
			p.pos++
			results = cross(results, p.group())
		case inGroup && (c == ')' || c == '|'):
			flush()
			return results
		default:
			lit.WriteByte(c)
			p.pos++
		}
	}
	flush()
	return results
}

func (p *expander) group() []string {
	var alts []string
	for {
		alts = append(alts, p.sequence(true)...)
		if p.pos >= len(p.s) {
			// unbalanced: treat end of input as the closing paren
			return alts
		}
		c := p.s[p.pos]
		p.pos++
		if c == ')' {
			return alts
		}
	}
}

func cross(prefixes, suffixes []string) []string {
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, pre := range prefixes {
		for _, suf := range suffixes {
			out = append(out, pre+suf)
		}
	}
	return out
}
