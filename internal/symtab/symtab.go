// Package symtab reads the plain-text symbol table: one "word id\n" per
// line, required to contain both <s> and </s>. Spec §6 states this format
// explicitly, overriding original_source/src/symbol_table.cc's binary SYM0
// section -- see DESIGN.md.
package symtab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrCorrupt reports a malformed line or a table missing <s>/</s>.
var ErrCorrupt = errors.New("symtab: corrupt symbol table")

// Table maps between word strings and their integer ids.
type Table struct {
	words   []string // indexed by id
	ids     map[string]int32
	startID int32
	endID   int32
}

// Read parses a symbol table from r. Every id must be used exactly once;
// both <s> and </s> must appear, per spec §6/§7.
func Read(r io.Reader, name string) (*Table, error) {
	ids := make(map[string]int32)
	usedIDs := make(map[int32]bool)
	var maxID int32 = -1

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %s:%d: expected \"word id\", got %q", ErrCorrupt, name, lineNo, line)
		}
		id64, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: invalid id %q: %v", ErrCorrupt, name, lineNo, fields[1], err)
		}
		id := int32(id64)
		if _, dup := ids[fields[0]]; dup {
			return nil, fmt.Errorf("%w: %s:%d: duplicate word %q", ErrCorrupt, name, lineNo, fields[0])
		}
		if id < 0 || usedIDs[id] {
			return nil, fmt.Errorf("%w: %s:%d: negative or duplicate id %d", ErrCorrupt, name, lineNo, id)
		}
		usedIDs[id] = true
		ids[fields[0]] = id
		if id > maxID {
			maxID = id
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("symtab: %s: %w", name, err)
	}

	words := make([]string, maxID+1)
	for w, id := range ids {
		words[id] = w
	}
	if len(ids) != len(words) {
		return nil, fmt.Errorf("%w: %s: ids are not contiguous from 0 to %d", ErrCorrupt, name, maxID)
	}

	startID, ok := ids["<s>"]
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing <s>", ErrCorrupt, name)
	}
	endID, ok := ids["</s>"]
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing </s>", ErrCorrupt, name)
	}

	return &Table{words: words, ids: ids, startID: startID, endID: endID}, nil
}

// Get returns the word for id, or "" if id is out of range.
func (t *Table) Get(id int32) string {
	if id < 0 || int(id) >= len(t.words) {
		return ""
	}
	return t.words[id]
}

// ID returns the id for word and whether it was found.
func (t *Table) ID(word string) (int32, bool) {
	id, ok := t.ids[word]
	return id, ok
}

// StartID returns <s>'s id.
func (t *Table) StartID() int32 { return t.startID }

// EndID returns </s>'s id.
func (t *Table) EndID() int32 { return t.endID }

// Len returns one past the largest id in the table (the size a dense
// array indexed by id, such as a unigram vector, must have).
func (t *Table) Len() int32 { return int32(len(t.words)) }
