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
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/m3db/m3x/clock"

	"github.com/lulzzz/aika/src/aika/apierror"
	"github.com/lulzzz/aika/src/aika/instrument"
	"github.com/lulzzz/aika/src/aika/ts"
)

// Registry owns tag and state-set definitions. Writes are serialized with a
// single mutex; readers take a read lock and receive a cloned TagDefinition,
// so a caller's pointer never aliases registry-owned state (§4.1, §5).
type Registry struct {
	mu          sync.RWMutex
	byID        map[uuid.UUID]*TagDefinition
	byName      *nameIndex
	stateSets   map[string]*StateSet
	setRefs     map[string]map[uuid.UUID]struct{}
	authorizer  Authorizer
	nowFn       clock.NowFn
	iopts       instrument.Options
	ordinalByID map[uuid.UUID]uint32
	idByOrdinal []uuid.UUID
	deleted     map[uuid.UUID]struct{}
}

// NewRegistry returns an empty Registry. A nil authorizer defaults to
// AllowAll.
func NewRegistry(authorizer Authorizer, iopts instrument.Options) *Registry {
	if authorizer == nil {
		authorizer = AllowAll{}
	}
	if iopts == nil {
		iopts = instrument.NewOptions()
	}
	return &Registry{
		byID:        make(map[uuid.UUID]*TagDefinition),
		byName:      newNameIndex(),
		stateSets:   make(map[string]*StateSet),
		setRefs:     make(map[string]map[uuid.UUID]struct{}),
		authorizer:  authorizer,
		nowFn:       iopts.ClockOptions().NowFn(),
		iopts:       iopts,
		ordinalByID: make(map[uuid.UUID]uint32),
		deleted:     make(map[uuid.UUID]struct{}),
	}
}

// ordinalLocked assigns a tag a stable, never-reused ordinal used to index
// it into the roaring bitmaps built by search queries. Must be called with
// r.mu held.
func (r *Registry) ordinalLocked(id uuid.UUID) uint32 {
	ordinal := uint32(len(r.idByOrdinal))
	r.idByOrdinal = append(r.idByOrdinal, id)
	r.ordinalByID[id] = ordinal
	return ordinal
}

func nameKey(name string) string { return strings.ToLower(name) }

// CreateTag validates and inserts a new tag definition.
func (r *Registry) CreateTag(p Principal, settings Settings) (*TagDefinition, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName.lookup(settings.Name); exists {
		return nil, apierror.New(apierror.Conflict, "tag name already in use: "+settings.Name)
	}
	if settings.DataType == ts.State {
		if _, ok := r.stateSets[nameKey(settings.StateSetName)]; !ok {
			return nil, apierror.New(apierror.Validation, "unknown state set: "+settings.StateSetName)
		}
	}
	if !r.authorizer.AuthorizeAdmin(p, uuid.Nil) {
		return nil, apierror.New(apierror.Unauthorized, "not authorized to create tags")
	}

	now := r.nowFn()
	def := &TagDefinition{
		ID:             uuid.New(),
		Name:           settings.Name,
		DataType:       settings.DataType,
		Units:          settings.Units,
		Description:    settings.Description,
		StateSetName:   settings.StateSetName,
		ExceptionCfg:   settings.ExceptionCfg,
		CompressionCfg: settings.CompressionCfg,
		Metadata: Metadata{
			CreatedAt:  now,
			Creator:    p.ID,
			ModifiedAt: now,
			Modifier:   p.ID,
		},
		Security: Security{Owner: settings.Owner, Policies: settings.Policies},
	}

	r.byID[def.ID] = def
	r.byName.put(def.Name, def.ID)
	r.ordinalLocked(def.ID)
	if settings.DataType == ts.State {
		r.addSetRefLocked(settings.StateSetName, def.ID)
	}
	return cloneDef(def), nil
}

// UpdateTag applies settings to an existing tag, rejecting changes that
// would break a registry invariant.
func (r *Registry) UpdateTag(p Principal, id uuid.UUID, settings Settings) (*TagDefinition, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return nil, apierror.New(apierror.NotFound, "tag not found")
	}
	if !r.authorizer.AuthorizeAdmin(p, id) {
		return nil, apierror.New(apierror.Unauthorized, "not authorized to update tag")
	}

	if owner, exists := r.byName.lookup(settings.Name); exists && owner != id {
		return nil, apierror.New(apierror.Conflict, "tag name already in use: "+settings.Name)
	}
	if settings.DataType == ts.State {
		if _, ok := r.stateSets[nameKey(settings.StateSetName)]; !ok {
			return nil, apierror.New(apierror.Conflict, "unknown state set: "+settings.StateSetName)
		}
	}

	if nameKey(existing.Name) != nameKey(settings.Name) {
		r.byName.remove(existing.Name)
		r.byName.put(settings.Name, id)
	}
	if existing.DataType == ts.State && existing.StateSetName != settings.StateSetName {
		r.removeSetRefLocked(existing.StateSetName, id)
	}
	if settings.DataType == ts.State {
		r.addSetRefLocked(settings.StateSetName, id)
	}

	updated := *existing
	updated.Name = settings.Name
	updated.DataType = settings.DataType
	updated.Units = settings.Units
	updated.Description = settings.Description
	updated.StateSetName = settings.StateSetName
	updated.ExceptionCfg = settings.ExceptionCfg
	updated.CompressionCfg = settings.CompressionCfg
	updated.Security = Security{Owner: settings.Owner, Policies: settings.Policies}
	updated.Metadata.ModifiedAt = r.nowFn()
	updated.Metadata.Modifier = p.ID

	r.byID[id] = &updated
	return cloneDef(&updated), nil
}

// DeleteTag removes a tag definition. Tearing down its filter state,
// subscriptions, and per-tag executor is the caller's responsibility (C4/C6
// own those lifecycles); the registry only stops resolving the id and frees
// its name for reuse.
func (r *Registry) DeleteTag(p Principal, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return apierror.New(apierror.NotFound, "tag not found")
	}
	if !r.authorizer.AuthorizeAdmin(p, id) {
		return apierror.New(apierror.Unauthorized, "not authorized to delete tag")
	}

	delete(r.byID, id)
	r.byName.remove(existing.Name)
	r.deleted[id] = struct{}{}
	if existing.DataType == ts.State {
		r.removeSetRefLocked(existing.StateSetName, id)
	}
	return nil
}

// Resolve looks up a tag by id or by case-insensitive name.
func (r *Registry) Resolve(nameOrID string) (*TagDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, err := uuid.Parse(nameOrID); err == nil {
		if def, ok := r.byID[id]; ok {
			return cloneDef(def), true
		}
		return nil, false
	}
	id, ok := r.byName.lookup(nameOrID)
	if !ok {
		return nil, false
	}
	return cloneDef(r.byID[id]), true
}

// ResolveID is Resolve by id only, used on the hot write path where the
// caller already holds a resolved id.
func (r *Registry) ResolveID(id uuid.UUID) (*TagDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return cloneDef(def), true
}

// ResolveForWrite is Resolve for write paths that must distinguish a tag
// that was deleted from one that never existed (§3, §4's per-tag state
// machine: "Deleted is terminal; any in-flight operation completes with
// Deleted"). A name is freed for reuse at delete time, so only id lookups
// can land in the tombstone; a name that no longer resolves is simply not
// found, since it may already belong to a different tag.
func (r *Registry) ResolveForWrite(nameOrID string) (*TagDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, err := uuid.Parse(nameOrID)
	if err != nil {
		resolved, ok := r.byName.lookup(nameOrID)
		if !ok {
			return nil, apierror.New(apierror.NotFound, "tag not found: "+nameOrID)
		}
		id = resolved
	}

	if def, ok := r.byID[id]; ok {
		return cloneDef(def), nil
	}
	if _, ok := r.deleted[id]; ok {
		return nil, apierror.New(apierror.Deleted, "tag deleted: "+nameOrID)
	}
	return nil, apierror.New(apierror.NotFound, "tag not found: "+nameOrID)
}

// Ordinal returns the stable bitmap ordinal assigned to id at creation, for
// callers (search, subscription) that index tags into bitsets.
func (r *Registry) Ordinal(id uuid.UUID) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, live := r.byID[id]; !live {
		return 0, false
	}
	ordinal, ok := r.ordinalByID[id]
	return ordinal, ok
}

// AuthorizeWrite reports whether p may write tagID, per the registry's
// configured Authorizer.
func (r *Registry) AuthorizeWrite(p Principal, tagID uuid.UUID) bool {
	return r.authorizer.AuthorizeWrite(p, tagID)
}

// AuthorizeRead reports whether p may read tagID, per the registry's
// configured Authorizer.
func (r *Registry) AuthorizeRead(p Principal, tagID uuid.UUID) bool {
	return r.authorizer.AuthorizeRead(p, tagID)
}

// CreateStateSet inserts a new named state set.
func (r *Registry) CreateStateSet(p Principal, name string, values []StateValue) (*StateSet, error) {
	if err := validateStateValues(values); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameKey(name)
	if _, exists := r.stateSets[key]; exists {
		return nil, apierror.New(apierror.Conflict, "state set name already in use: "+name)
	}
	set := &StateSet{Name: name, Values: append([]StateValue(nil), values...)}
	r.stateSets[key] = set
	return set.Clone(), nil
}

// ReplaceStateSet swaps the value set of an existing state set wholesale.
func (r *Registry) ReplaceStateSet(p Principal, name string, values []StateValue) (*StateSet, error) {
	if err := validateStateValues(values); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameKey(name)
	if _, exists := r.stateSets[key]; !exists {
		return nil, apierror.New(apierror.NotFound, "state set not found: "+name)
	}
	set := &StateSet{Name: name, Values: append([]StateValue(nil), values...)}
	r.stateSets[key] = set
	return set.Clone(), nil
}

// DeleteStateSet removes a state set, failing while any tag still
// references it.
func (r *Registry) DeleteStateSet(p Principal, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameKey(name)
	if _, exists := r.stateSets[key]; !exists {
		return apierror.New(apierror.NotFound, "state set not found: "+name)
	}
	if refs := r.setRefs[key]; len(refs) > 0 {
		return apierror.New(apierror.Conflict, "state set referenced by tags: "+name)
	}
	delete(r.stateSets, key)
	return nil
}

// ResolveStateSet looks up a state set by name.
func (r *Registry) ResolveStateSet(name string) (*StateSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.stateSets[nameKey(name)]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

func (r *Registry) addSetRefLocked(setName string, tagID uuid.UUID) {
	key := nameKey(setName)
	refs, ok := r.setRefs[key]
	if !ok {
		refs = make(map[uuid.UUID]struct{})
		r.setRefs[key] = refs
	}
	refs[tagID] = struct{}{}
}

func (r *Registry) removeSetRefLocked(setName string, tagID uuid.UUID) {
	key := nameKey(setName)
	if refs, ok := r.setRefs[key]; ok {
		delete(refs, tagID)
		if len(refs) == 0 {
			delete(r.setRefs, key)
		}
	}
}

func cloneDef(def *TagDefinition) *TagDefinition {
	clone := *def
	if len(def.Security.Policies) > 0 {
		clone.Security.Policies = append([]string(nil), def.Security.Policies...)
	}
	return &clone
}

func validateSettings(settings Settings) error {
	if strings.TrimSpace(settings.Name) == "" {
		return apierror.New(apierror.Validation, "tag name must not be empty")
	}
	switch settings.DataType {
	case ts.FloatingPoint, ts.Integer, ts.Text, ts.State:
	default:
		return apierror.New(apierror.Validation, "unknown data type")
	}
	if settings.DataType == ts.State && strings.TrimSpace(settings.StateSetName) == "" {
		return apierror.New(apierror.Validation, "state tags require a state_set_name")
	}
	if settings.DataType != ts.State && settings.StateSetName != "" {
		return apierror.New(apierror.Validation, "state_set_name only applies to State tags")
	}
	return nil
}

func validateStateValues(values []StateValue) error {
	if len(values) == 0 {
		return apierror.New(apierror.Validation, "state set must have at least one value")
	}
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v.Value]; dup {
			return apierror.New(apierror.Validation, "state set values must be unique")
		}
		seen[v.Value] = struct{}{}
	}
	return nil
}
