// Package listing decodes long-format directory listing lines (ls -l) into
// structured file metadata.
package listing

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("malformed listing line")

// Class selects a permission triplet.
type Class int

const (
	Owner Class = iota
	Group
	Other
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case Owner:
		return "owner"
	case Group:
		return "group"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ParseClass maps a class name (owner/user/u, group/g, other/o) to a Class.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(s) {
	case "owner", "user", "u":
		return Owner, nil
	case "group", "g":
		return Group, nil
	case "other", "world", "o":
		return Other, nil
	}
	return 0, fmt.Errorf("unknown permission class %q", s)
}

// Entry is the metadata decoded from one listing line. Readable, Writable
// and Executable are indexed by Class.
type Entry struct {
	IsDirectory bool    `yaml:"is_directory" json:"is_directory"`
	IsFile      bool    `yaml:"is_file" json:"is_file"`
	Mode        string  `yaml:"mode" json:"mode"`
	Owner       string  `yaml:"owner" json:"owner"`
	Group       string  `yaml:"group" json:"group"`
	Size        string  `yaml:"size" json:"size"`
	Readable    [3]bool `yaml:"readable" json:"readable"`
	Writable    [3]bool `yaml:"writable" json:"writable"`
	Executable  [3]bool `yaml:"executable" json:"executable"`
}

// FileMode returns the permission bits as an os.FileMode, with os.ModeDir
// set for directories.
func (e *Entry) FileMode() os.FileMode {
	bits, err := strconv.ParseUint(e.Mode, 8, 32)
	if err != nil {
		return 0
	}
	mode := os.FileMode(bits).Perm()
	if e.IsDirectory {
		mode |= os.ModeDir
	}
	return mode
}

// minFields is permissions, links, owner, group, size and at least one
// date/path token.
const minFields = 6

// Parse decodes one long-format listing line. The permission field is
// checked strictly; the remaining columns are split on any run of
// whitespace, so irregular spacing is accepted.
func Parse(line string) (*Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < minFields {
		return nil, fmt.Errorf("%w: expected at least %d columns, got %d: %q", ErrMalformed, minFields, len(fields), line)
	}

	perms := fields[0]
	if len(perms) == 11 && strings.ContainsRune(".+@", rune(perms[10])) {
		perms = perms[:10]
	}
	if len(perms) != 10 {
		return nil, fmt.Errorf("%w: permission field %q is not 10 characters", ErrMalformed, fields[0])
	}

	entry := &Entry{
		IsDirectory: perms[0] == 'd',
		IsFile:      perms[0] == '-',
		Owner:       fields[2],
		Group:       fields[3],
		Size:        fields[4],
	}

	var digits [3]int
	for class := Owner; class <= Other; class++ {
		triplet := perms[1+3*int(class) : 4+3*int(class)]
		r, w, x, err := decodeTriplet(triplet, class)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, fields[0], err)
		}

		entry.Readable[class] = r
		entry.Writable[class] = w
		entry.Executable[class] = x

		if r {
			digits[class] += 4
		}
		if w {
			digits[class] += 2
		}
		if x {
			digits[class]++
		}
	}

	entry.Mode = fmt.Sprintf("0%d%d%d", digits[Owner], digits[Group], digits[Other])
	return entry, nil
}

// decodeTriplet decodes rwx for one class. The execute column also carries
// setuid/setgid (owner, group) or sticky (other); the lowercase forms imply
// the execute bit.
func decodeTriplet(t string, class Class) (r, w, x bool, err error) {
	switch t[0] {
	case 'r':
		r = true
	case '-':
	default:
		return false, false, false, fmt.Errorf("%s read flag %q", class, t[0])
	}

	switch t[1] {
	case 'w':
		w = true
	case '-':
	default:
		return false, false, false, fmt.Errorf("%s write flag %q", class, t[1])
	}

	special, upper := byte('s'), byte('S')
	if class == Other {
		special, upper = 't', 'T'
	}
	switch t[2] {
	case 'x', special:
		x = true
	case '-', upper:
	default:
		return false, false, false, fmt.Errorf("%s execute flag %q", class, t[2])
	}

	return r, w, x, nil
}

// ParseAll parses every entry in multi-line ls -l output, skipping blank
// lines and the "total N" header.
func ParseAll(output string) ([]*Entry, error) {
	var entries []*Entry
	for i, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isTotal(trimmed) {
			continue
		}

		entry, err := Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func isTotal(line string) bool {
	fields := strings.Fields(line)
	return len(fields) == 2 && fields[0] == "total"
}

// Triplets decodes a mode string as produced by Parse ("0755") back into
// readable, writable and executable flags indexed by Class.
func Triplets(mode string) (readable, writable, executable [3]bool, err error) {
	if len(mode) != 4 || mode[0] != '0' {
		return readable, writable, executable, fmt.Errorf("invalid mode %q: want 4 octal digits with a leading 0", mode)
	}

	for class := Owner; class <= Other; class++ {
		c := mode[1+int(class)]
		if c < '0' || c > '7' {
			return readable, writable, executable, fmt.Errorf("invalid mode %q: %q is not an octal digit", mode, c)
		}
		digit := c - '0'
		readable[class] = digit&4 != 0
		writable[class] = digit&2 != 0
		executable[class] = digit&1 != 0
	}

	return readable, writable, executable, nil
}
