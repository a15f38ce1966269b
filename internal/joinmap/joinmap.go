package joinmap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"framealign/internal/frames"
)

// ErrMalformed reports a join file line that cannot be parsed.
var ErrMalformed = errors.New("malformed join line")

// Entry is one explicit line of a join file.
type Entry struct {
	Target int
	Source int
	Frame  int
	Marker string
}

// String renders e in the join file format.
func (e Entry) String() string {
	s := fmt.Sprintf("%d %d %d", e.Target, e.Source, e.Frame)
	if e.Marker != "" {
		s += " " + e.Marker
	}
	return s
}

// Ref locates one output frame: a frame of the main clip (Source 0) or of
// extra clip Source.
type Ref struct {
	Source int
	Frame  int
}

// Map resolves output frames to their origin.
type Map struct {
	refs    []Ref
	entries []Entry
}

// Parse reads a join file for a main clip of mainFrames frames.
func Parse(r io.Reader, mainFrames int) (*Map, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if n := len(entries); n > 0 && e.Target <= entries[n-1].Target {
			return nil, fmt.Errorf("line %d: %w: target %d does not follow %d", lineNo, ErrMalformed, e.Target, entries[n-1].Target)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read join file: %w", err)
	}
	return build(entries, mainFrames)
}

// Load parses the join file at path. A missing file yields the identity map.
func Load(path string, mainFrames int) (*Map, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return build(nil, mainFrames)
	}
	if err != nil {
		return nil, fmt.Errorf("open join file: %w", err)
	}
	defer f.Close()
	return Parse(f, mainFrames)
}

func parseLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("%w: want at least 3 fields, got %d", ErrMalformed, len(fields))
	}
	var nums [3]int
	for i := range nums {
		v, err := strconv.Atoi(fields[i])
		if err != nil || v < 0 {
			return Entry{}, fmt.Errorf("%w: field %d %q is not a non-negative integer", ErrMalformed, i+1, fields[i])
		}
		nums[i] = v
	}
	return Entry{
		Target: nums[0],
		Source: nums[1],
		Frame:  nums[2],
		Marker: strings.Join(fields[3:], " "),
	}, nil
}

func build(entries []Entry, mainFrames int) (*Map, error) {
	total := mainFrames + len(entries)
	refs := make([]Ref, 0, total)
	main := 0
	for _, e := range entries {
		if e.Target >= total {
			return nil, fmt.Errorf("%w: target %d beyond %d output frames", ErrMalformed, e.Target, total)
		}
		for len(refs) < e.Target {
			refs = append(refs, Ref{Frame: main})
			main++
		}
		refs = append(refs, Ref{Source: e.Source, Frame: e.Frame})
	}
	for len(refs) < total {
		refs = append(refs, Ref{Frame: main})
		main++
	}
	return &Map{refs: refs, entries: entries}, nil
}

// Len returns the number of output frames.
func (m *Map) Len() int { return len(m.refs) }

// Entries returns the explicit lines in file order.
func (m *Map) Entries() []Entry { return append([]Entry(nil), m.entries...) }

// Resolve returns the origin of output frame n.
func (m *Map) Resolve(n int) (Ref, error) {
	if n < 0 || n >= len(m.refs) {
		return Ref{}, fmt.Errorf("%w: %d not in [0,%d)", frames.ErrFrameRange, n, len(m.refs))
	}
	return m.refs[n], nil
}

// Sources returns the highest source index the map refers to.
func (m *Map) Sources() int {
	highest := 0
	for _, e := range m.entries {
		highest = max(highest, e.Source)
	}
	return highest
}

// Clip serves the spliced sequence as a frames.Clip.
type Clip struct {
	m      *Map
	main   frames.Clip
	extras []frames.Clip
}

// NewClip joins main and extras according to m.
func NewClip(m *Map, main frames.Clip, extras ...frames.Clip) (*Clip, error) {
	if need := m.Sources(); need > len(extras) {
		return nil, fmt.Errorf("join map references source %d but only %d extra clips were given", need, len(extras))
	}
	return &Clip{m: m, main: main, extras: extras}, nil
}

func (c *Clip) Len() int { return c.m.Len() }

func (c *Clip) Frame(ctx context.Context, n int) (*frames.Image, error) {
	ref, err := c.m.Resolve(n)
	if err != nil {
		return nil, err
	}
	if ref.Source == 0 {
		return c.main.Frame(ctx, ref.Frame)
	}
	return c.extras[ref.Source-1].Frame(ctx, ref.Frame)
}
