// Package birdcodes maps species codes to the integer labels stored in the
// dataset. The default mapping covers the 262 species of the training corpus;
// a custom list can be loaded from a file.
package birdcodes

import (
	"bufio"
	"embed"
	"os"
	"strings"

	"github.com/chirpset/chirpset/internal/errors"
)

//go:embed data/codes.txt
var codesFile embed.FS

// Codes is an ordered species-code list. A code's label is its position in
// the list.
type Codes struct {
	names []string
	ids   map[string]int
}

// Default returns the embedded species list.
func Default() *Codes {
	data, err := codesFile.ReadFile("data/codes.txt")
	if err != nil {
		// The embedded file is part of the binary.
		panic(err)
	}
	codes, err := parse(strings.NewReader(string(data)), "embedded")
	if err != nil {
		panic(err)
	}
	return codes
}

// FromFile loads a species list from path, one code per line. Blank lines
// and lines starting with '#' are skipped.
func FromFile(path string) (*Codes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, path)
}

func parse(r interface{ Read([]byte) (int, error) }, source string) (*Codes, error) {
	c := &Codes{ids: make(map[string]int)}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		code := strings.TrimSpace(scanner.Text())
		if code == "" || strings.HasPrefix(code, "#") {
			continue
		}
		if _, dup := c.ids[code]; dup {
			return nil, errors.Newf("duplicate species code %q in %s", code, source).
				Component("birdcodes").
				Category(errors.CategoryFileParsing).
				Context("code", code).
				Build()
		}
		c.ids[code] = len(c.names)
		c.names = append(c.names, code)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(c.names) == 0 {
		return nil, errors.Newf("species list %s is empty", source).
			Component("birdcodes").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return c, nil
}

// ID returns the integer label of code.
func (c *Codes) ID(code string) (int, bool) {
	id, ok := c.ids[code]
	return id, ok
}

// Name returns the code at label id.
func (c *Codes) Name(id int) (string, bool) {
	if id < 0 || id >= len(c.names) {
		return "", false
	}
	return c.names[id], true
}

// Len returns the number of known species.
func (c *Codes) Len() int { return len(c.names) }

// Names returns the codes in label order. The returned slice is shared;
// callers must not modify it.
func (c *Codes) Names() []string { return c.names }
