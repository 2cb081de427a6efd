// Package facttype defines the authoritative vocabulary of extractable
// fact types.
//
// Both the extraction pipeline and the matching engine consume this single
// registry, so the two subsystems can never disagree on which fields exist.
// Each type carries its trigger keywords (for label resolution), whether it
// is singular or multi-valued, an optional jurisdiction, and the
// normalization applied to raw values before storage.
package facttype

// Type identifies one kind of extractable fact.
type Type string

const (
	BusinessName      Type = "business-name"
	IdentifierABN     Type = "business-identifier-abn"
	IdentifierACN     Type = "business-identifier-acn"
	IdentifierNZBN    Type = "business-identifier-nzbn"
	IdentifierCompany Type = "business-identifier-company"
	IdentifierCharity Type = "business-identifier-charity"
	IdentifierGST     Type = "business-identifier-gst"
	ContactEmail      Type = "contact-email"
	ContactPhone      Type = "contact-phone"
	ContactWebsite    Type = "contact-website"
	AddressBusiness   Type = "address-business"
	AddressPostal     Type = "address-postal"
	AnnualTurnover    Type = "financial-annual-turnover"
	Profit            Type = "financial-profit"
	Assets            Type = "financial-assets"
	PublicLiability   Type = "insurance-public-liability"
	ProfIndemnity     Type = "insurance-professional-indemnity"
	EmployeesCount    Type = "company-employees"
	Certification     Type = "certification-entry"
	Experience        Type = "experience-entry"
	TeamContact       Type = "team-contact"
)

// Jurisdiction tags identifier types that only make sense in one country.
type Jurisdiction string

const (
	JurisdictionAny Jurisdiction = ""
	JurisdictionNZ  Jurisdiction = "nz"
	JurisdictionAU  Jurisdiction = "au"
)

// Info holds the metadata for a registered fact type.
type Info struct {
	Type         Type
	Singular     bool
	Jurisdiction Jurisdiction
	// Triggers are lowercase keywords and phrases that resolve a free-text
	// field label to this type. Phrases (containing spaces) match as
	// substrings of the normalized label; single words match whole tokens.
	Triggers []string
	// Normalize converts a raw matched value to its stored form.
	Normalize func(string) string
}

// registry is ordered; iteration order is part of the extraction pipeline's
// determinism guarantee.
var registry = []Info{
	{Type: BusinessName, Singular: true,
		Triggers:  []string{"company name", "business name", "organisation name", "organization name", "legal name", "trading name"},
		Normalize: CollapseSpace},
	{Type: IdentifierABN, Singular: true, Jurisdiction: JurisdictionAU,
		Triggers:  []string{"abn", "australian business number"},
		Normalize: DigitsOnly},
	{Type: IdentifierACN, Singular: true, Jurisdiction: JurisdictionAU,
		Triggers:  []string{"acn", "australian company number"},
		Normalize: DigitsOnly},
	{Type: IdentifierNZBN, Singular: true, Jurisdiction: JurisdictionNZ,
		Triggers:  []string{"nzbn", "new zealand business number"},
		Normalize: DigitsOnly},
	{Type: IdentifierCompany, Singular: true, Jurisdiction: JurisdictionNZ,
		Triggers:  []string{"company number", "nz company number", "incorporation number"},
		Normalize: DigitsOnly},
	{Type: IdentifierCharity, Singular: true, Jurisdiction: JurisdictionNZ,
		Triggers:  []string{"charity number", "charity registration", "charities number", "charities registration"},
		Normalize: DigitsOnly},
	{Type: IdentifierGST, Singular: true, Jurisdiction: JurisdictionNZ,
		Triggers:  []string{"gst", "gst number", "goods and services tax"},
		Normalize: DigitsOnly},
	{Type: ContactEmail, Singular: true,
		Triggers:  []string{"email", "e-mail", "email address"},
		Normalize: LowerTrim},
	{Type: ContactPhone, Singular: true,
		Triggers:  []string{"phone", "telephone", "mobile", "contact number", "phone number"},
		Normalize: DigitsAndPlus},
	{Type: ContactWebsite, Singular: true,
		Triggers:  []string{"website", "web site", "url", "web address"},
		Normalize: LowerTrim},
	{Type: AddressBusiness, Singular: true,
		Triggers:  []string{"address", "business address", "company address", "street address", "physical address"},
		Normalize: CollapseSpace},
	{Type: AddressPostal, Singular: true,
		Triggers:  []string{"postal address", "mailing address", "po box"},
		Normalize: CollapseSpace},
	{Type: AnnualTurnover, Singular: true,
		Triggers:  []string{"turnover", "revenue", "annual turnover", "annual income", "annual revenue", "yearly revenue"},
		Normalize: Currency},
	{Type: Profit, Singular: true,
		Triggers:  []string{"profit", "net income", "profit loss", "surplus"},
		Normalize: Currency},
	{Type: Assets, Singular: true,
		Triggers:  []string{"assets", "asset value", "total assets"},
		Normalize: Currency},
	{Type: PublicLiability, Singular: true,
		Triggers:  []string{"public liability", "general liability", "liability cover", "liability coverage"},
		Normalize: Currency},
	{Type: ProfIndemnity, Singular: true,
		Triggers:  []string{"professional indemnity", "pi insurance", "indemnity cover"},
		Normalize: Currency},
	{Type: EmployeesCount, Singular: true,
		Triggers:  []string{"employees", "staff", "headcount", "number of employees", "staff size", "fte"},
		Normalize: DigitsOnly},
	{Type: Certification, Singular: false,
		Triggers:  []string{"certification", "certifications", "license", "licence", "permit", "accreditation", "qualified"},
		Normalize: CollapseSpace},
	{Type: Experience, Singular: false,
		Triggers:  []string{"experience", "project", "projects", "previous work", "track record", "similar work"},
		Normalize: CollapseSpace},
	{Type: TeamContact, Singular: false,
		Triggers:  []string{"contact person", "representative", "key personnel", "team member", "project manager", "director"},
		Normalize: CollapseSpace},
}

var byType = func() map[Type]Info {
	m := make(map[Type]Info, len(registry))
	for _, info := range registry {
		m[info.Type] = info
	}
	return m
}()

// All returns every registered fact type in stable registration order.
func All() []Info {
	out := make([]Info, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the metadata for a fact type.
func Lookup(t Type) (Info, bool) {
	info, ok := byType[t]
	return info, ok
}

// Known reports whether t is in the running registry. Stored facts of
// unknown types are preserved and passed through untouched, so callers use
// this to decide treatment, never to delete.
func Known(t Type) bool {
	_, ok := byType[t]
	return ok
}

// IsSingular reports whether t holds at most one current value per subject.
// Unknown types are treated as multi-valued so they are never overwritten.
func IsSingular(t Type) bool {
	info, ok := byType[t]
	return ok && info.Singular
}

// NormalizeValue applies the type's normalization to a raw value. Unknown
// types get whitespace collapsing only.
func NormalizeValue(t Type, raw string) string {
	if info, ok := byType[t]; ok && info.Normalize != nil {
		return info.Normalize(raw)
	}
	return CollapseSpace(raw)
}
