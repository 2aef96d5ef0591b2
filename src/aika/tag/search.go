// Copyright (c) 2016 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package tag

import (
	"regexp"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/twotwotwo/sorts"

	"github.com/lulzzz/aika/src/aika/apierror"
)

// Field is a searchable attribute of a TagDefinition.
type Field int8

// Searchable fields (§4.1 list).
const (
	FieldName Field = iota
	FieldDescription
	FieldUnits
)

// Op combines Clauses in a ListFilter.
type Op int8

// Filter combinators.
const (
	And Op = iota
	Or
)

// Clause matches one Field against a glob Pattern using '*' and '?'.
type Clause struct {
	Field   Field
	Pattern string
}

// ListFilter is a conjunction or disjunction of Clauses.
type ListFilter struct {
	Op      Op
	Clauses []Clause
}

// Page requests a deterministic, bounded page of search results.
type Page struct {
	PageSize int
	Page     int
}

var globCache sync.Map // pattern string -> *regexp.Regexp

func globRegexp(pattern string) *regexp.Regexp {
	if cached, ok := globCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	globCache.Store(pattern, re)
	return re
}

func fieldValue(def *TagDefinition, f Field) string {
	switch f {
	case FieldDescription:
		return def.Description
	case FieldUnits:
		return def.Units
	default:
		return def.Name
	}
}

// ListTags evaluates filter against every live tag and returns a
// deterministically ordered, paginated slice.
//
// Each clause's matches are collected into a roaring bitmap of tag
// ordinals; clauses combine via bitmap Or/And rather than re-scanning the
// registry per clause, the same way a tag search index would combine
// postings lists.
func (r *Registry) ListTags(filter ListFilter, page Page) ([]*TagDefinition, error) {
	errs := apierror.NewMultiError()
	if page.PageSize < 1 || page.PageSize > 100 {
		errs = errs.Add(apierror.New(apierror.Validation, "page_size must be in [1,100]"))
	}
	if page.Page < 1 {
		errs = errs.Add(apierror.New(apierror.Validation, "page must be >= 1"))
	}
	if err := errs.FinalError(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.evaluateFilterLocked(filter)

	results := make([]*TagDefinition, 0, matched.GetCardinality())
	it := matched.Iterator()
	for it.HasNext() {
		ordinal := it.Next()
		if int(ordinal) >= len(r.idByOrdinal) {
			continue
		}
		id := r.idByOrdinal[ordinal]
		def, ok := r.byID[id]
		if !ok {
			continue
		}
		results = append(results, cloneDef(def))
	}

	sortByNameThenID(results)

	start := (page.Page - 1) * page.PageSize
	if start >= len(results) {
		return []*TagDefinition{}, nil
	}
	end := start + page.PageSize
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], nil
}

func (r *Registry) evaluateFilterLocked(filter ListFilter) *roaring.Bitmap {
	if len(filter.Clauses) == 0 {
		all := roaring.New()
		for id := range r.byID {
			all.Add(r.ordinalByID[id])
		}
		return all
	}

	var combined *roaring.Bitmap
	for _, clause := range filter.Clauses {
		clauseBitmap := r.evaluateClauseLocked(clause)
		if combined == nil {
			combined = clauseBitmap
			continue
		}
		if filter.Op == Or {
			combined.Or(clauseBitmap)
		} else {
			combined.And(clauseBitmap)
		}
	}
	return combined
}

func (r *Registry) evaluateClauseLocked(clause Clause) *roaring.Bitmap {
	re := globRegexp(clause.Pattern)
	bitmap := roaring.New()
	for id, def := range r.byID {
		if re.MatchString(fieldValue(def, clause.Field)) {
			bitmap.Add(r.ordinalByID[id])
		}
	}
	return bitmap
}

// sortByNameThenID orders results by (name_ci, id) as required by §4.1.
// twotwotwo/sorts is a parallel, non-stable sort well suited to the large
// result sets a wide glob can produce before pagination truncates them.
func sortByNameThenID(defs []*TagDefinition) {
	sorts.Quicksort(byNameThenID(defs))
}

type byNameThenID []*TagDefinition

func (s byNameThenID) Len() int { return len(s) }
func (s byNameThenID) Less(i, j int) bool {
	ni, nj := nameKey(s[i].Name), nameKey(s[j].Name)
	if ni != nj {
		return ni < nj
	}
	return s[i].ID.String() < s[j].ID.String()
}
func (s byNameThenID) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
