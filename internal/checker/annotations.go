package checker

import "strings"

type annotationKind int

const (
	annAllowUncheckedData annotationKind = iota
	annAllowUncheckedParams
	annFilter
)

// annotation is a "#[...]" comment applying to the expression on the
// following line.
type annotation struct {
	kind annotationKind
	vars []string // filter targets; "*" means every variable
}

type annotations []annotation

// parseAnnotation reads the text of a comment. ok is false when the
// comment is not an annotation; known is false for an annotation this
// analysis does not understand.
func parseAnnotation(text string) (ann annotation, ok, known bool) {
	text = strings.TrimSpace(text)
	body, found := strings.CutPrefix(text, "#[")
	if !found {
		return annotation{}, false, false
	}
	body, found = strings.CutSuffix(strings.TrimSpace(body), "]")
	if !found {
		return annotation{}, true, false
	}
	name, rest, hasArgs := strings.Cut(body, "(")
	name = strings.TrimSpace(name)
	var args []string
	if hasArgs {
		inner, closed := strings.CutSuffix(strings.TrimSpace(rest), ")")
		if !closed {
			return annotation{}, true, false
		}
		for _, a := range strings.Split(inner, ",") {
			if a = strings.TrimSpace(a); a != "" {
				args = append(args, a)
			}
		}
	}

	switch {
	case name == "allow" && len(args) == 1 && args[0] == "unchecked_data":
		return annotation{kind: annAllowUncheckedData}, true, true
	case name == "allow" && len(args) == 1 && args[0] == "unchecked_params":
		return annotation{kind: annAllowUncheckedParams}, true, true
	case name == "filter" && len(args) > 0:
		return annotation{kind: annFilter, vars: args}, true, true
	}
	return annotation{}, true, false
}

// collectAnnotations maps each annotated expression line to its
// annotations. A block of consecutive comment lines applies to the line
// right after it. Unknown annotations are reported as notes.
func (a *analysis) collectAnnotations() map[int]annotations {
	out := map[int]annotations{}
	comments := a.contract.Comments
	for i, cm := range comments {
		ann, ok, known := parseAnnotation(cm.Text)
		if !ok {
			continue
		}
		if !known {
			a.diags = append(a.diags, Diagnostic{
				Level:   LevelNote,
				Code:    CodeUnknownAnnotation,
				Message: "unknown annotation: " + strings.TrimSpace(cm.Text),
				Span:    cm.Span,
			})
			continue
		}
		target := cm.Span.StartLine + 1
		for j := i + 1; j < len(comments) && comments[j].Span.StartLine == target; j++ {
			target++
		}
		out[target] = append(out[target], ann)
	}
	return out
}

// apply adjusts ctx for an annotated expression and reports whether the
// expression's diagnostics are silenced.
func (anns annotations) apply(ctx context) (context, []string, bool, bool) {
	var (
		filtered []string
		all      bool
		silence  bool
	)
	for _, ann := range anns {
		switch ann.kind {
		case annAllowUncheckedData:
			silence = true
		case annFilter:
			for _, v := range ann.vars {
				if v == "*" {
					all = true
					continue
				}
				filtered = append(filtered, v)
			}
		}
	}
	ctx = ctx.trust(filtered)
	if all {
		ctx.trustAll = true
	}
	return ctx, filtered, all, silence
}
