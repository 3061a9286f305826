// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package index

import (
	"regexp"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// MatchType is the predicate kind a Matcher applies to one label's value.
type MatchType uint8

const (
	MatchEqual MatchType = iota
	MatchNotEqual
	MatchRegexEqual
	MatchRegexNotEqual
)

// Matcher is a single label predicate: Label <Type> Value.
type Matcher struct {
	Label string
	Value string
	Type  MatchType

	re *regexp.Regexp
}

// NewMatcher builds a Matcher, compiling Value as a regexp for the two
// regex match types. An invalid pattern is reported immediately rather than
// surfacing at query time.
func NewMatcher(label string, mt MatchType, value string) (Matcher, error) {
	m := Matcher{Label: label, Value: value, Type: mt}
	if mt == MatchRegexEqual || mt == MatchRegexNotEqual {
		re, err := regexp.Compile("^(?:" + value + ")$")
		if err != nil {
			return Matcher{}, err
		}
		m.re = re
	}
	return m, nil
}

func (m Matcher) matchesEmpty() bool {
	return m.re != nil && m.re.MatchString("")
}

// PostingsForMatcher resolves one Matcher to its bitmap of candidate IDs,
// per spec.md §4.4's predicate-resolution table.
func PostingsForMatcher(p *PostingIndex, m Matcher) *roaring64.Bitmap {
	switch m.Type {
	case MatchEqual:
		if m.Value == "" {
			return p.PostingsWithoutLabel(m.Label)
		}
		return p.PostingsForLabelValue(m.Label, m.Value)
	case MatchNotEqual:
		if m.Value == "" {
			return p.PostingsForAllLabelValues(m.Label)
		}
		all := p.AllPostings()
		without := p.PostingsForLabelValue(m.Label, m.Value)
		all.AndNot(without)
		return all
	case MatchRegexEqual:
		got := p.PostingsForLabelMatching(m.Label, func(v string) bool { return m.re.MatchString(v) })
		if m.matchesEmpty() {
			got.Or(p.PostingsWithoutLabel(m.Label))
		}
		return got
	case MatchRegexNotEqual:
		got := p.PostingsForLabelMatching(m.Label, func(v string) bool { return !m.re.MatchString(v) })
		if !m.matchesEmpty() {
			got.Or(p.PostingsWithoutLabel(m.Label))
		}
		return got
	default:
		return roaring64.New()
	}
}

// Matchers groups matchers into OR-of-AND-groups: And(M1,...,Mn) within a
// group, Or across groups, matching spec.md §4.4's selector composition.
type Matchers [][]Matcher

// Resolve intersects each AND-group's matcher bitmaps, then unions the
// per-group results.
func (ms Matchers) Resolve(p *PostingIndex) *roaring64.Bitmap {
	out := roaring64.New()
	for _, group := range ms {
		out.Or(andGroup(p, group))
	}
	return out
}

func andGroup(p *PostingIndex, group []Matcher) *roaring64.Bitmap {
	if len(group) == 0 {
		return p.AllPostings()
	}
	acc := PostingsForMatcher(p, group[0]).Clone()
	for _, m := range group[1:] {
		acc.And(PostingsForMatcher(p, m))
	}
	return acc
}
