// Package detect implements the multi-strategy DOM element classifier.
//
// A classifier evaluates an ordered strategy table against a goquery
// selection and returns the first non-empty match together with a
// confidence score derived from the method that produced it. A selector
// that worked before is cached per entity type and tried first on
// subsequent runs. "Nothing matched" is a normal result, not an error.
package detect

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Method names the kind of strategy that produced a detection result.
type Method string

const (
	MethodInstagram   Method = "instagram"
	MethodTestID      Method = "testId"
	MethodAriaLabel   Method = "ariaLabel"
	MethodAttribute   Method = "attribute"
	MethodClass       Method = "class"
	MethodStructure   Method = "structure"
	MethodTextPattern Method = "text-pattern"
	MethodFallback    Method = "fallback"
	MethodNone        Method = "none"
)

// methodConfidence is the fixed confidence ladder. The values are strictly
// descending in method priority so that a higher-priority match never
// reports a lower confidence than a lower-priority one.
var methodConfidence = map[Method]float64{
	MethodInstagram:   0.95,
	MethodTestID:      0.9,
	MethodAriaLabel:   0.85,
	MethodAttribute:   0.8,
	MethodClass:       0.7,
	MethodStructure:   0.65,
	MethodTextPattern: 0.6,
	MethodFallback:    0.3,
	MethodNone:        0,
}

// Confidence returns the fixed confidence constant for the method.
func (m Method) Confidence() float64 {
	return methodConfidence[m]
}

// Result is the output of one classification attempt.
//
// Invariant: a Result with no elements has confidence 0 and method "none".
type Result struct {
	// Elements holds the matched nodes in document order. It may be nil
	// when nothing matched.
	Elements *goquery.Selection
	// Confidence is in [0,1]; 1.0 means the cached selector matched.
	Confidence float64
	Method     Method
	// Selector is the selector string that produced the match. For
	// text-pattern results it is the broad fallback selector the text
	// filter ran over; it is empty only for none results.
	Selector string
	// Cached reports whether the selector cache satisfied this request.
	Cached    bool
	Timestamp time.Time
}

// Count returns the number of matched elements.
func (r Result) Count() int {
	if r.Elements == nil {
		return 0
	}
	return r.Elements.Length()
}

// None reports whether nothing was detected.
func (r Result) None() bool {
	return r.Method == MethodNone
}

func noneResult() Result {
	return Result{Method: MethodNone, Timestamp: time.Now()}
}
