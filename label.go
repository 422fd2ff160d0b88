package trainhmm

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer(SwitchAssignment{}.SerializerType(),
		DeserializeSwitchAssignment)
}

// A Label identifies one of the three edges leaving a
// vertex.
// Left and Right double as switch settings.
type Label uint8

const (
	None Label = iota
	Zero
	Left
	Right
)

// NumLabels is the number of edge labels, and therefore
// the degree of every vertex.
const NumLabels = 3

// edgeLabels lists the edge labels in index order.
var edgeLabels = [NumLabels]Label{Zero, Left, Right}

// IsEdge checks if l is one of Zero, Left or Right.
func (l Label) IsEdge() bool {
	return l >= Zero && l <= Right
}

// IsSwitch checks if l is a valid switch setting.
func (l Label) IsSwitch() bool {
	return l == Left || l == Right
}

// Opposite returns the other switch setting.
// Labels which are not switch settings are returned
// unchanged.
func (l Label) Opposite() Label {
	switch l {
	case Left:
		return Right
	case Right:
		return Left
	}
	return l
}

// String returns "-", "0", "L" or "R".
func (l Label) String() string {
	switch l {
	case None:
		return "-"
	case Zero:
		return "0"
	case Left:
		return "L"
	case Right:
		return "R"
	}
	return fmt.Sprintf("Label(%d)", uint8(l))
}

// ParseLabel is the inverse of Label.String.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "-":
		return None, nil
	case "0":
		return Zero, nil
	case "L":
		return Left, nil
	case "R":
		return Right, nil
	}
	return None, fmt.Errorf("unknown label %q", s)
}

// A SwitchAssignment stores the setting of every switch,
// indexed by vertex.
type SwitchAssignment []Label

// RandomSwitchAssignment sets each of n switches to Left
// or Right uniformly at random.
//
// If gen is nil, the global routines in package rand are
// used.
func RandomSwitchAssignment(gen *rand.Rand, n int) SwitchAssignment {
	res := make(SwitchAssignment, n)
	for i := range res {
		res[i] = randomSwitch(gen)
	}
	return res
}

// UniformSwitchAssignment sets all n switches to l.
func UniformSwitchAssignment(n int, l Label) SwitchAssignment {
	res := make(SwitchAssignment, n)
	for i := range res {
		res[i] = l
	}
	return res
}

// ParseSwitchAssignment parses a string like "LRRL".
func ParseSwitchAssignment(s string) (SwitchAssignment, error) {
	res := make(SwitchAssignment, 0, len(s))
	for _, ch := range s {
		l, err := ParseLabel(string(ch))
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	if err := res.Validate(len(res)); err != nil {
		return nil, err
	}
	return res, nil
}

// DeserializeSwitchAssignment deserializes a
// SwitchAssignment.
func DeserializeSwitchAssignment(d []byte) (s SwitchAssignment, err error) {
	defer essentials.AddCtxTo("deserialize SwitchAssignment", &err)
	s = make(SwitchAssignment, len(d))
	for i, b := range d {
		s[i] = Label(b)
	}
	if err := s.Validate(len(s)); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that s holds n switch settings.
func (s SwitchAssignment) Validate(n int) error {
	if len(s) != n {
		return fmt.Errorf("%w: expected %d switches but got %d", ErrInvalidSwitch,
			n, len(s))
	}
	for i, l := range s {
		if !l.IsSwitch() {
			return fmt.Errorf("%w: vertex %d has setting %v", ErrInvalidSwitch, i, l)
		}
	}
	return nil
}

// Flip returns a copy of s with the switch at vertex v
// toggled.
func (s SwitchAssignment) Flip(v int) SwitchAssignment {
	res := s.Copy()
	res[v] = res[v].Opposite()
	return res
}

// Copy returns a copy of s.
func (s SwitchAssignment) Copy() SwitchAssignment {
	return append(SwitchAssignment{}, s...)
}

// Equal checks if two assignments are identical.
func (s SwitchAssignment) Equal(s1 SwitchAssignment) bool {
	if len(s) != len(s1) {
		return false
	}
	for i, l := range s {
		if s1[i] != l {
			return false
		}
	}
	return true
}

// Hamming counts the switches on which s and s1 differ.
// Both assignments must have the same length.
func (s SwitchAssignment) Hamming(s1 SwitchAssignment) int {
	var res int
	for i, l := range s {
		if s1[i] != l {
			res++
		}
	}
	return res
}

// String returns a string like "LRRL".
func (s SwitchAssignment) String() string {
	var b strings.Builder
	for _, l := range s {
		b.WriteString(l.String())
	}
	return b.String()
}

// SerializerType returns the unique ID used to serialize
// a SwitchAssignment with the serializer package.
func (s SwitchAssignment) SerializerType() string {
	return "github.com/unixpickle/trainhmm.SwitchAssignment"
}

// Serialize serializes the assignment, one byte per
// switch.
func (s SwitchAssignment) Serialize() ([]byte, error) {
	res := make([]byte, len(s))
	for i, l := range s {
		res[i] = byte(l)
	}
	return res, nil
}
