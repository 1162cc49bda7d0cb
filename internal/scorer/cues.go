package scorer

import "regexp"

// Cue is a named heuristic predicate over the message text. The default
// set covers English task-reference phrasing; callers can install their
// own list via SetCues.
type Cue struct {
	Name     string
	patterns []*regexp.Regexp
}

// Match reports whether any of the cue's patterns hits the text.
func (c Cue) Match(text string) bool {
	for _, p := range c.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// NewCue compiles a cue from regular expression sources. Invalid patterns
// are skipped.
func NewCue(name string, patterns ...string) Cue {
	c := Cue{Name: name}
	for _, src := range patterns {
		if re, err := regexp.Compile(src); err == nil {
			c.patterns = append(c.patterns, re)
		}
	}
	return c
}

// DefaultCues returns the built-in cue predicates, ordered: task
// reference, modification intent, completion intent, cancellation intent.
func DefaultCues() []Cue {
	return []Cue{
		NewCue("task reference",
			`(?i)\bthat task\b`, `(?i)\bthe task\b`, `(?i)\bthis task\b`,
			`(?i)\bthat one\b`, `(?i)\bthis\b`, `(?i)\bit\b`),
		NewCue("modification",
			`(?i)\bchange\b`, `(?i)\bupdate\b`, `(?i)\bmodify\b`,
			`(?i)\brevise\b`, `(?i)\badjust\b`, `(?i)\binstead\b`),
		NewCue("completion",
			`(?i)\bdone\b`, `(?i)\bfinished\b`, `(?i)\bcompleted?\b`),
		NewCue("cancellation",
			`(?i)\bcancel\b`, `(?i)\bremove\b`, `(?i)\bdelete\b`, `(?i)\bforget\b`),
	}
}
