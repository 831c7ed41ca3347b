package isodep

import "fmt"

// Attribute names a quantity owned by a DataSet or a depletion driver.
type Attribute uint8

const (
	AttrIDs Attribute = iota + 1
	AttrAtomicWeight
	AttrQ
	AttrBranchRatio
	AttrLambda
	AttrDecay
	AttrIngestion
	AttrInhalation
	AttrFissionYield
	AttrEfissMeV
	AttrEfissJoule
	AttrXS
	AttrTransmutation
	AttrNu

	AttrVolume
	AttrTimePoints
	AttrNt
	AttrPower
	AttrFlux
	AttrAt
	AttrAtCurie
	AttrQt
	AttrMass
	AttrToxIngestion
	AttrToxInhalation
	AttrTotalAt
	AttrTotalAtCurie
	AttrTotalQt
	AttrTotalMass
	AttrTotalToxIngestion
	AttrTotalToxInhalation
	AttrKeff
	AttrRho
	AttrDRho
	AttrDRhoToRho
	AttrEssential

	numAttributes
)

// Kind is the shape of an attribute.
type Kind uint8

const (
	KindIDs        Kind = iota + 1 // one ZAID per isotope
	KindVector                     // one value per isotope
	KindMatrix                     // isotopes x isotopes
	KindTable                      // isotopes x reactions
	KindSeries                     // isotopes x time points
	KindTimeSeries                 // one value per time point (or per step)
	KindScalar
)

// Purpose is a set of computations an attribute is required for.
type Purpose uint16

const (
	PurposeDecay Purpose = 1 << iota
	PurposeTransmutation
	PurposeActivity
	PurposeDecayHeat
	PurposeRadiotoxicity
	PurposeMass
	PurposeReactivity
)

func (p Purpose) String() string {
	switch p {
	case PurposeDecay:
		return "decay"
	case PurposeTransmutation:
		return "transmutation"
	case PurposeActivity:
		return "activity"
	case PurposeDecayHeat:
		return "decay heat"
	case PurposeRadiotoxicity:
		return "radiotoxicity"
	case PurposeMass:
		return "mass"
	case PurposeReactivity:
		return "reactivity"
	default:
		return fmt.Sprintf("purpose(%#x)", uint16(p))
	}
}

// AttributeInfo describes an attribute.
type AttributeInfo struct {
	Name string
	Kind Kind
	Unit string
	// RequiredFor lists the computations which cannot run without it.
	RequiredFor Purpose
	// Weighted attributes are volume averaged when combining several results.
	Weighted bool
}

var attributeSchema = [numAttributes]AttributeInfo{
	AttrIDs:           {"fullId", KindIDs, "", PurposeDecay | PurposeTransmutation, false},
	AttrAtomicWeight:  {"AW", KindVector, "g/mol", PurposeMass, false},
	AttrQ:             {"Q", KindVector, "W/Bq", PurposeDecayHeat, false},
	AttrBranchRatio:   {"BR", KindVector, "", 0, false},
	AttrLambda:        {"lambda", KindVector, "1/s", PurposeActivity | PurposeDecayHeat | PurposeRadiotoxicity, false},
	AttrDecay:         {"decaymtx", KindMatrix, "1/s", PurposeDecay | PurposeTransmutation, false},
	AttrIngestion:     {"ingestion", KindVector, "Sv/Bq", PurposeRadiotoxicity, false},
	AttrInhalation:    {"inhalation", KindVector, "Sv/Bq", PurposeRadiotoxicity, false},
	AttrFissionYield:  {"fymtx", KindMatrix, "", PurposeTransmutation, false},
	AttrEfissMeV:      {"EfissMeV", KindVector, "MeV", 0, false},
	AttrEfissJoule:    {"EfissJoule", KindVector, "J", PurposeTransmutation, false},
	AttrXS:            {"xsData", KindTable, "cm^2", PurposeTransmutation | PurposeReactivity, false},
	AttrTransmutation: {"transmutationmtx", KindMatrix, "cm^2", PurposeTransmutation, false},
	AttrNu:            {"nu", KindVector, "", PurposeReactivity, false},

	AttrVolume:             {"volume", KindScalar, "cm^3", PurposeActivity | PurposeDecayHeat | PurposeRadiotoxicity | PurposeMass, false},
	AttrTimePoints:         {"timepoints", KindTimeSeries, "", 0, false},
	AttrNt:                 {"Nt", KindSeries, "#/b-cm", PurposeActivity | PurposeDecayHeat | PurposeRadiotoxicity | PurposeMass | PurposeReactivity, true},
	AttrPower:              {"power", KindTimeSeries, "W", 0, true},
	AttrFlux:               {"flux", KindTimeSeries, "n/cm^2/s", 0, true},
	AttrAt:                 {"At", KindSeries, "Bq", 0, true},
	AttrAtCurie:            {"AtCurie", KindSeries, "Ci", 0, true},
	AttrQt:                 {"Qt", KindSeries, "W", 0, true},
	AttrMass:               {"massgr", KindSeries, "g", 0, true},
	AttrToxIngestion:       {"toxicityIngestion", KindSeries, "Sv", 0, true},
	AttrToxInhalation:      {"toxicityInhalation", KindSeries, "Sv", 0, true},
	AttrTotalAt:            {"totalAt", KindTimeSeries, "Bq", 0, true},
	AttrTotalAtCurie:       {"totalAtCurie", KindTimeSeries, "Ci", 0, true},
	AttrTotalQt:            {"totalQt", KindTimeSeries, "W", 0, true},
	AttrTotalMass:          {"totalMassgr", KindTimeSeries, "g", 0, true},
	AttrTotalToxIngestion:  {"totalToxIngestion", KindTimeSeries, "Sv", 0, true},
	AttrTotalToxInhalation: {"totalToxInhalation", KindTimeSeries, "Sv", 0, true},
	AttrKeff:               {"keff", KindTimeSeries, "", 0, false},
	AttrRho:                {"Rho", KindTimeSeries, "pcm", 0, false},
	AttrDRho:               {"dRho", KindSeries, "pcm", 0, false},
	AttrDRhoToRho:          {"dRhoToRho", KindSeries, "", 0, false},
	AttrEssential:          {"essential", KindSeries, "", 0, false},
}

// Info returns the schema entry of the attribute.
func (a Attribute) Info() AttributeInfo {
	if a == 0 || a >= numAttributes {
		return AttributeInfo{}
	}
	return attributeSchema[a]
}

func (a Attribute) String() string {
	if info := a.Info(); info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("attribute(%d)", a)
}

// ParseAttribute returns the attribute with the given name.
func ParseAttribute(name string) (Attribute, error) {
	for a := AttrIDs; a < numAttributes; a++ {
		if attributeSchema[a].Name == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("attribute %q: %w", name, ErrNotFound)
}

// Attributes returns every attribute required for the purpose.
func (p Purpose) Attributes() []Attribute {
	var attrs []Attribute
	for a := AttrIDs; a < numAttributes; a++ {
		if attributeSchema[a].RequiredFor&p != 0 {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// has returns whether the data set carries the attribute.
func (d *DataSet) has(a Attribute) bool {
	switch a {
	case AttrIDs:
		return len(d.ids) > 0
	case AttrAtomicWeight:
		return d.aw != nil
	case AttrQ:
		return d.q != nil
	case AttrBranchRatio:
		return d.br != nil
	case AttrLambda:
		return d.lambda != nil
	case AttrDecay:
		return d.decay != nil
	case AttrIngestion:
		return d.ingestion != nil
	case AttrInhalation:
		return d.inhalation != nil
	case AttrFissionYield:
		return d.fy != nil
	case AttrEfissMeV:
		return d.efissMeV != nil
	case AttrEfissJoule:
		return d.efissJoule != nil
	case AttrXS:
		return d.xs != nil
	case AttrTransmutation:
		return d.trans != nil
	case AttrNu:
		return d.nu != nil
	default:
		return false
	}
}

// isDataSetAttribute reports whether the attribute belongs to a DataSet.
func isDataSetAttribute(a Attribute) bool {
	return a >= AttrIDs && a <= AttrNu
}
