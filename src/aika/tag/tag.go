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

// Package tag owns tag and state-set definitions: identity, lifecycle, and
// name resolution (§4.1).
package tag

import (
	"time"

	"github.com/google/uuid"

	"github.com/lulzzz/aika/src/aika/filter"
	"github.com/lulzzz/aika/src/aika/ts"
)

// Metadata is the provenance block carried on every TagDefinition.
type Metadata struct {
	CreatedAt  time.Time
	Creator    string
	ModifiedAt time.Time
	Modifier   string
}

// Security is the authorization-relevant block carried on every
// TagDefinition. Policy evaluation itself is an external collaborator; the
// core only stores what a policy hook needs.
type Security struct {
	Owner    string
	Policies []string
}

// TagDefinition is the identity and configuration of a tag (§3).
type TagDefinition struct {
	ID             uuid.UUID
	Name           string
	DataType       ts.DataType
	Units          string
	Description    string
	StateSetName   string
	ExceptionCfg   filter.Config
	CompressionCfg filter.Config
	Metadata       Metadata
	Security       Security
}

// Settings is the caller-supplied input to CreateTag/UpdateTag.
type Settings struct {
	Name           string
	DataType       ts.DataType
	Units          string
	Description    string
	StateSetName   string
	ExceptionCfg   filter.Config
	CompressionCfg filter.Config
	Owner          string
	Policies       []string
}

// StateValue is one named/numeric pair of a StateSet.
type StateValue struct {
	Name  string
	Value int
}

// StateSet is a named, ordered enumeration used by State-typed tags (§3).
// It is immutable once published; ReplaceStateSet swaps the whole value.
type StateSet struct {
	Name   string
	Values []StateValue
}

// Clone returns a deep copy, since Values is a slice and callers must not be
// able to mutate a StateSet through a returned pointer.
func (s *StateSet) Clone() *StateSet {
	values := make([]StateValue, len(s.Values))
	copy(values, s.Values)
	return &StateSet{Name: s.Name, Values: values}
}

// Principal identifies the caller of an authorization-checked operation.
type Principal struct {
	ID string
}

// Authorizer is the boolean policy hook named in the Non-goals: role and
// permission semantics beyond it are out of scope for the core.
type Authorizer interface {
	AuthorizeRead(p Principal, tagID uuid.UUID) bool
	AuthorizeWrite(p Principal, tagID uuid.UUID) bool
	AuthorizeAdmin(p Principal, tagID uuid.UUID) bool
}

// AllowAll is an Authorizer that permits every operation, useful for tests
// and embedders that perform authorization upstream of the core.
type AllowAll struct{}

// AuthorizeRead always returns true.
func (AllowAll) AuthorizeRead(Principal, uuid.UUID) bool { return true }

// AuthorizeWrite always returns true.
func (AllowAll) AuthorizeWrite(Principal, uuid.UUID) bool { return true }

// AuthorizeAdmin always returns true.
func (AllowAll) AuthorizeAdmin(Principal, uuid.UUID) bool { return true }
