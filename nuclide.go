package isodep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ZAID identifies an isotope as Z*10000 + A*10 + m, where m is 0 for the ground
// state and 1 for the metastable state (e.g. 541350 is Xe-135).
type ZAID int

// NewZAID returns the ZAID for the given proton count, mass number and isomeric state.
func NewZAID(z, a, m int) ZAID {
	return ZAID(z*10000 + a*10 + m)
}

// Z returns the number of protons.
func (id ZAID) Z() int { return int(id) / 10000 }

// A returns the mass number.
func (id ZAID) A() int { return (int(id) % 10000) / 10 }

// Meta returns the isomeric state.
func (id ZAID) Meta() int { return int(id) % 10 }

// Ground returns the ZAID rounded to the nearest ground state, which is the
// parent used to derive reaction products.
func (id ZAID) Ground() ZAID {
	return ZAID(math.Round(float64(id)/10) * 10)
}

func (id ZAID) String() string {
	z := id.Z()
	if z <= 0 || z >= len(elements) {
		return strconv.Itoa(int(id))
	}
	s := fmt.Sprintf("%s%d", elements[z], id.A())
	if m := id.Meta(); m == 1 {
		s += "m"
	} else if m > 1 {
		s += fmt.Sprintf("m%d", m)
	}
	return s
}

// ParseZAID accepts either the integer form ("541350") or the symbol form ("Xe135", "Am242m").
func ParseZAID(s string) (ZAID, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("zaid %d: %w", v, ErrNegative)
		}
		return ZAID(v), nil
	}
	i := 0
	for i < len(s) && unicode.IsLetter(rune(s[i])) {
		i++
	}
	j := i
	for j < len(s) && unicode.IsDigit(rune(s[j])) {
		j++
	}
	if i == 0 || j == i {
		return 0, fmt.Errorf("cannot parse isotope %q: %w", s, ErrNotFound)
	}
	z := -1
	for k, sym := range elements {
		if strings.EqualFold(sym, s[:i]) {
			z = k
			break
		}
	}
	if z <= 0 {
		return 0, fmt.Errorf("unknown element in %q: %w", s, ErrNotFound)
	}
	a, _ := strconv.Atoi(s[i:j])
	m := 0
	if rest := s[j:]; rest != "" {
		if rest[0] != 'm' && rest[0] != 'M' {
			return 0, fmt.Errorf("cannot parse isotope %q: %w", s, ErrNotFound)
		}
		m = 1
		if len(rest) > 1 {
			if v, err := strconv.Atoi(rest[1:]); err == nil {
				m = v
			}
		}
	}
	return NewZAID(z, a, m), nil
}

// Reaction enumerates the one-group reactions stored per isotope. The values
// are also the column indices of a DataSet cross section table.
type Reaction uint8

const (
	Absorption Reaction = iota
	Fission
	Capture
	CaptureMeta
	N2n
	N3n
	Alpha
	Proton
	Deuteron
	Triton
	// NumReactions is the number of columns of a cross section table.
	NumReactions
)

// productOffsets holds the ZAID shift from the ground-state parent to the
// reaction product. Absorption and fission have none.
var productOffsets = [NumReactions]int{
	Capture:     +10,
	CaptureMeta: +11,
	N2n:         -10,
	N3n:         -20,
	Alpha:       -20030,
	Proton:      -10000,
	Deuteron:    -10010,
	Triton:      -10020,
}

// minProductZAID is the smallest ZAID tracked as a reaction product.
const minProductZAID = 100

func (r Reaction) String() string {
	switch r {
	case Absorption:
		return "abs"
	case Fission:
		return "f"
	case Capture:
		return "c"
	case CaptureMeta:
		return "c2m"
	case N2n:
		return "n2n"
	case N3n:
		return "n3n"
	case Alpha:
		return "alpha"
	case Proton:
		return "p"
	case Deuteron:
		return "d"
	case Triton:
		return "t"
	default:
		panic(fmt.Errorf("unknown reaction %d", r))
	}
}

// HasProduct returns whether this reaction leads to a single tracked product.
func (r Reaction) HasProduct() bool {
	return r >= Capture && r < NumReactions
}

// Product returns the ZAID produced when this isotope undergoes reaction r.
// The returned bool is false when the reaction has no single product or when
// the product falls below the tracked range.
func (id ZAID) Product(r Reaction) (ZAID, bool) {
	if !r.HasProduct() {
		return 0, false
	}
	p := id.Ground() + ZAID(productOffsets[r])
	if p < minProductZAID {
		return 0, false
	}
	return p, true
}

// FissionEnergyMeV returns the recoverable energy per fission for actinides
// (ZAID >= 900000), using E = 1.29927e-3 * Z^2 * sqrt(A) + 33.12 MeV, and
// zero for any other isotope.
func (id ZAID) FissionEnergyMeV() float64 {
	if id < 900000 {
		return 0
	}
	z, a := float64(id.Z()), float64(id.A())
	return 1.29927e-3*z*z*math.Sqrt(a) + 33.12
}

var elements = [...]string{"n",
	"H", "He", "Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar", "K", "Ca",
	"Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr", "Rb", "Sr", "Y", "Zr",
	"Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn",
	"Sb", "Te", "I", "Xe", "Cs", "Ba", "La", "Ce", "Pr", "Nd",
	"Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb",
	"Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
	"Tl", "Pb", "Bi", "Po", "At", "Rn", "Fr", "Ra", "Ac", "Th",
	"Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm",
	"Md", "No", "Lr", "Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds",
	"Rg", "Cn", "Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}
