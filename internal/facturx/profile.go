package facturx

import (
	"fmt"
	"strings"

	"github.com/jhoicas/facture-electronique/internal/domain"
)

// Profile is a Factur-X conformance level, ordered from least to most detailed.
type Profile int

const (
	ProfileMinimum Profile = iota
	ProfileBasic
	ProfileEN16931
	ProfileExtended
)

// Namespaces of the CII D16B syntax used by every profile.
const (
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceUDT = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"
	NamespaceQDT = "urn:un:unece:uncefact:data:standard:QualifiedDataType:100"
	NamespaceRAM = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	NamespaceRSM = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
)

// Namespace is a prefix bound to a URI.
type Namespace struct {
	Prefix string
	URI    string
}

// ciiNamespaces is declared on the root element in this order.
var ciiNamespaces = []Namespace{
	{Prefix: "xsi", URI: NamespaceXSI},
	{Prefix: "udt", URI: NamespaceUDT},
	{Prefix: "qdt", URI: NamespaceQDT},
	{Prefix: "ram", URI: NamespaceRAM},
	{Prefix: "rsm", URI: NamespaceRSM},
}

// ProfileConfig drives which sections the builder emits and which resources
// validate the result.
type ProfileConfig struct {
	Name  string
	Level string // factur-x packer level and file suffix
	URN   string // BT-24 guideline identifier

	IncludesNote          bool
	IncludesFullAddress   bool
	IncludesLineItems     bool
	IncludesPaymentMeans  bool
	IncludesTaxBreakdown  bool
	IncludesPaymentTerms  bool
	ForbidsGlobalDiscount bool

	SchematronResource string
	XSDResource        string
	Namespaces         []Namespace
}

var profileConfigs = [...]ProfileConfig{
	ProfileMinimum: {
		Name:               "MINIMUM",
		Level:              "minimum",
		URN:                "urn:factur-x.eu:1p0:minimum",
		SchematronResource: "FACTUR-X_MINIMUM.xslt",
		XSDResource:        "FACTUR-X_MINIMUM.xsd",
		Namespaces:         ciiNamespaces,
	},
	ProfileBasic:    richProfile("BASIC", "basic", "urn:cen.eu:en16931:2017#compliant#urn:factur-x.eu:1p0:basic"),
	ProfileEN16931:  richProfile("EN16931", "en16931", "urn:cen.eu:en16931:2017"),
	ProfileExtended: richProfile("EXTENDED", "extended", "urn:cen.eu:en16931:2017#conformant#urn:factur-x.eu:1p0:extended"),
}

func richProfile(name, level, urn string) ProfileConfig {
	return ProfileConfig{
		Name:                  name,
		Level:                 level,
		URN:                   urn,
		IncludesNote:          true,
		IncludesFullAddress:   true,
		IncludesLineItems:     true,
		IncludesPaymentMeans:  true,
		IncludesTaxBreakdown:  true,
		IncludesPaymentTerms:  true,
		ForbidsGlobalDiscount: true,
		SchematronResource:    "FACTUR-X_" + name + ".xslt",
		XSDResource:           "FACTUR-X_" + name + ".xsd",
		Namespaces:            ciiNamespaces,
	}
}

// Config returns the profile's configuration record.
func (p Profile) Config() ProfileConfig {
	if !p.Valid() {
		panic(fmt.Sprintf("facturx: invalid profile %d", int(p)))
	}
	return profileConfigs[p]
}

// Valid reports whether p is one of the four defined profiles.
func (p Profile) Valid() bool {
	return p >= ProfileMinimum && p <= ProfileExtended
}

func (p Profile) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Profile(%d)", int(p))
	}
	return profileConfigs[p].Name
}

// Profiles returns every profile in ascending order.
func Profiles() []Profile {
	return []Profile{ProfileMinimum, ProfileBasic, ProfileEN16931, ProfileExtended}
}

// ParseProfile accepts a profile name or level, case-insensitively.
func ParseProfile(s string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Profiles() {
		cfg := profileConfigs[p]
		if key == cfg.Level || key == strings.ToLower(cfg.Name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownProfile, s)
}

// MarshalText lets profiles travel as names in JSON and flags.
func (p Profile) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownProfile, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText parses a profile name or level.
func (p *Profile) UnmarshalText(b []byte) error {
	parsed, err := ParseProfile(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
