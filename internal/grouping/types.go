package grouping

// Element is one input signal of a map, usually a feature found by a
// feature finder. When the map is itself the result of an earlier
// grouping, SubElements holds the members of the consensus feature.
type Element struct {
	ID          string   `json:",omitempty"`
	RT          float64  // Retention time (seconds)
	MZ          float64  // m/z
	Intensity   float64
	Charge      int      `json:",omitempty"` // 0 means unknown
	Identity    string   `json:",omitempty"` // Best peptide hit sequence
	SubElements []Member `json:",omitempty"`
}

// Map holds the elements of one run. The position of a map in the
// slice passed to Group or Link is its map index. A map made from a
// consensus map keeps its column headers, which describe the map
// indices of the sub-elements.
type Map struct {
	Name          string
	Elements      []Element
	ColumnHeaders []ColumnHeader `json:",omitempty"`
}

// Member refers to one input element of a consensus feature
type Member struct {
	MapIndex     int
	ElementIndex int
	ID           string `json:",omitempty"`
	RT           float64
	MZ           float64
	Intensity    float64
	Charge       int `json:",omitempty"`
}

// ConsensusFeature groups elements from different maps that are believed
// to stem from the same analyte
type ConsensusFeature struct {
	ID        string
	RT        float64 // Centroid of member retention times
	MZ        float64 // Centroid of member m/z values
	Intensity float64 // Sum of member intensities
	Charge    int     `json:",omitempty"`
	Quality   float64
	Identity  string `json:",omitempty"`
	Members   []Member
}

// ColumnHeader describes one input map of a consensus map
type ColumnHeader struct {
	Name string
	Size int
}

// ConsensusMap is the result of grouping
type ConsensusMap struct {
	ColumnHeaders []ColumnHeader
	Features      []ConsensusFeature
}

// Extraction describes one consensus feature as it was extracted
// by the clustering. It is passed to Params.OnExtract.
type Extraction struct {
	Partition   int
	Step        int // Extraction number within the partition
	Quality     float64
	SeedMap     int
	SeedElement int
	RT          float64 // Seed position
	MZ          float64
	Size        int // Number of grouped input elements
}

// AsMap turns a consensus map into a map that can be grouped again.
// Each consensus feature becomes one element that carries the
// original members as sub-elements.
func (c *ConsensusMap) AsMap(name string) Map {
	m := Map{
		Name:          name,
		Elements:      make([]Element, len(c.Features)),
		ColumnHeaders: c.ColumnHeaders,
	}
	for i, cf := range c.Features {
		m.Elements[i] = Element{
			ID:          cf.ID,
			RT:          cf.RT,
			MZ:          cf.MZ,
			Intensity:   cf.Intensity,
			Charge:      cf.Charge,
			Identity:    cf.Identity,
			SubElements: cf.Members,
		}
	}
	return m
}

// NumMembers returns the total number of members in all consensus features
func (c *ConsensusMap) NumMembers() int {
	n := 0
	for _, cf := range c.Features {
		n += len(cf.Members)
	}
	return n
}
