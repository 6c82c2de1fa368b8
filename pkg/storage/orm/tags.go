// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orm

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// _cassandraTag annotates the embedded base.Object with table metadata
	_cassandraTag = "cassandra"
	// _columnTag annotates regular columns
	_columnTag = "column"
	// _primaryKeyTag annotates the key field, either a key struct or a
	// single column
	_primaryKeyTag = "primaryKey"
	// _keyColumnTag annotates a composite key column
	_keyColumnTag = "keyColumn"

	_nameAttr       = "name"
	_primaryKeyAttr = "primaryKey"
	_forceQuoteAttr = "forceQuote"
	_ordinalAttr    = "ordinal"
	_typeAttr       = "type"
	_orderingAttr   = "ordering"
	_commentAttr    = "comment"

	// _skipColumn excludes a field from the mapping
	_skipColumn = "-"
)

// tagAttrs holds the key=value pairs of an orm tag.
type tagAttrs map[string]string

// parseTag parses `key=value, key2=value2` into attributes. Commas inside
// parentheses or single quotes do not split, so `primaryKey=((a, b), c)` and
// `comment='a, b'` are single attributes. A key without value is "true".
func parseTag(tag string) (tagAttrs, error) {
	attrs := tagAttrs{}
	for _, part := range splitTopLevel(tag, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var key, value string
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = strings.TrimSpace(part[:i])
			value = unquote(strings.TrimSpace(part[i+1:]))
		} else {
			key, value = part, "true"
		}
		if key == "" {
			return nil, fmt.Errorf("empty attribute name in %q", tag)
		}
		if _, ok := attrs[key]; ok {
			return nil, fmt.Errorf("attribute %q repeated in %q", key, tag)
		}
		attrs[key] = value
	}
	return attrs, nil
}

// only reports the first attribute which is not in allowed.
func (a tagAttrs) only(allowed ...string) error {
	for key := range a {
		found := false
		for _, k := range allowed {
			if key == k {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown attribute %q", key)
		}
	}
	return nil
}

func (a tagAttrs) bool(key string) (bool, error) {
	v, ok := a[key]
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("attribute %q: %q is not a bool", key, v)
	}
	return b, nil
}

// fieldMetadata converts keyColumn tag attributes into a declaration.
func (a tagAttrs) fieldMetadata() (FieldMetadata, error) {
	if err := a.only(_nameAttr, _ordinalAttr, _typeAttr, _orderingAttr,
		_forceQuoteAttr, _commentAttr); err != nil {
		return FieldMetadata{}, err
	}
	meta := FieldMetadata{
		Name:     a[_nameAttr],
		Type:     a[_typeAttr],
		Ordering: a[_orderingAttr],
		Comment:  a[_commentAttr],
	}
	if v, ok := a[_ordinalAttr]; ok {
		ordinal, err := strconv.Atoi(v)
		if err != nil {
			return FieldMetadata{}, fmt.Errorf("ordinal %q is not an integer", v)
		}
		meta.Ordinal = &ordinal
	}
	fq, err := a.bool(_forceQuoteAttr)
	if err != nil {
		return FieldMetadata{}, err
	}
	meta.ForceQuote = fq
	return meta, nil
}

func splitTopLevel(s string, sep byte) []string {
	var (
		parts  []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	return v
}

// clusteringSpec is one clustering entry of the primaryKey DSL.
type clusteringSpec struct {
	name     string
	ordering Ordering
}

// parsePrimaryKey parses the primaryKey DSL of the cassandra tag.
// Supported formats are ((PK1, PK2..), CK1, CK2 desc..) and (PK1, CK1..).
func parsePrimaryKey(s string) ([]string, []clusteringSpec, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, nil, fmt.Errorf("primary key %q is not enclosed in parentheses", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, nil, fmt.Errorf("primary key %q is empty", s)
	}

	parts := splitTopLevel(inner, ',')
	var partition []string
	first := strings.TrimSpace(parts[0])
	if strings.HasPrefix(first, "(") {
		if !strings.HasSuffix(first, ")") {
			return nil, nil, fmt.Errorf("partition key %q is not closed", first)
		}
		for _, p := range strings.Split(first[1:len(first)-1], ",") {
			if p = strings.TrimSpace(p); p != "" {
				partition = append(partition, p)
			}
		}
	} else if first != "" {
		partition = []string{first}
	}
	if len(partition) == 0 {
		return nil, nil, fmt.Errorf("primary key %q has no partition key", s)
	}

	var cluster []clusteringSpec
	for _, p := range parts[1:] {
		fields := strings.Fields(p)
		switch len(fields) {
		case 1, 2:
		default:
			return nil, nil, fmt.Errorf("invalid clustering key %q", strings.TrimSpace(p))
		}
		spec := clusteringSpec{name: fields[0]}
		if len(fields) == 2 {
			o, err := ParseOrdering(fields[1])
			if err != nil {
				return nil, nil, err
			}
			spec.ordering = o
		}
		cluster = append(cluster, spec)
	}
	return partition, cluster, nil
}
