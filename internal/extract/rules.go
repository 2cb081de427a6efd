package extract

import (
	"regexp"
	"strings"

	"github.com/morepork/factfill/internal/facttype"
)

// rule is one pattern for one fact type. Rules for the same type are tried
// in slice order; the first matching rule wins for singular types.
type rule struct {
	name string
	typ  facttype.Type
	re   *regexp.Regexp
	// group is the submatch index carrying the value; 0 means whole match.
	group int
	// minLen/maxLen bound the normalized value; 0 means unbounded. minDigits
	// and maxDigits constrain digit count for identifier shapes.
	minLen, maxLen       int
	minDigits, maxDigits int
}

type match struct {
	value  string
	raw    string
	offset int
}

// matches returns every occurrence of the rule in text, in document order.
func (r rule) matches(text string) []match {
	idxs := r.re.FindAllStringSubmatchIndex(text, -1)
	out := make([]match, 0, len(idxs))
	for _, loc := range idxs {
		g := r.group * 2
		if g+1 >= len(loc) || loc[g] < 0 {
			continue
		}
		out = append(out, match{
			value:  text[loc[g]:loc[g+1]],
			raw:    strings.TrimSpace(text[loc[0]:loc[1]]),
			offset: loc[0],
		})
	}
	return out
}

// accept validates a normalized value against the rule's shape bounds.
func (r rule) accept(value string) bool {
	if r.minLen > 0 && len(value) < r.minLen {
		return false
	}
	if r.maxLen > 0 && len(value) > r.maxLen {
		return false
	}
	if r.minDigits > 0 || r.maxDigits > 0 {
		digits := 0
		for _, c := range value {
			if c >= '0' && c <= '9' {
				digits++
			}
		}
		if r.minDigits > 0 && digits < r.minDigits {
			return false
		}
		if r.maxDigits > 0 && digits > r.maxDigits {
			return false
		}
	}
	return true
}

// initRules compiles the extraction rule set. Order within a fact type is
// priority order; overall slice order also fixes the pipeline's scan order,
// which keeps runs deterministic.
func initRules() []rule {
	return []rule{
		// Business identifiers: keyword proximity plus digit-group shape.
		{
			name: "nzbn_labelled", typ: facttype.IdentifierNZBN,
			re:    regexp.MustCompile(`(?i)(?:nzbn|new zealand business number)\s*[:#]?\s*(\d{4}[ -]?\d{3}[ -]?\d{3}[ -]?\d{3})\b`),
			group: 1, minDigits: 13, maxDigits: 13,
		},
		{
			name: "abn_labelled", typ: facttype.IdentifierABN,
			re:    regexp.MustCompile(`(?i)\b(?:abn|australian business number)\s*[:#]?\s*(\d{2}[ -]?\d{3}[ -]?\d{3}[ -]?\d{3})\b`),
			group: 1, minDigits: 11, maxDigits: 11,
		},
		{
			name: "acn_labelled", typ: facttype.IdentifierACN,
			re:    regexp.MustCompile(`(?i)\b(?:acn|australian company number)\s*[:#]?\s*(\d{3}[ -]?\d{3}[ -]?\d{3})\b`),
			group: 1, minDigits: 9, maxDigits: 9,
		},
		{
			name: "company_number_labelled", typ: facttype.IdentifierCompany,
			re:    regexp.MustCompile(`(?i)(?:company number|nz company|incorporation number)\s*[:#]?\s*(\d{7,8})\b`),
			group: 1, minDigits: 7, maxDigits: 8,
		},
		{
			name: "charity_number_labelled", typ: facttype.IdentifierCharity,
			re:    regexp.MustCompile(`(?i)(?:charity|charities)\s*(?:registration)?\s*(?:number)?\s*[:#]?\s*(\d{7})\b`),
			group: 1, minDigits: 7, maxDigits: 7,
		},
		{
			name: "gst_labelled", typ: facttype.IdentifierGST,
			re:    regexp.MustCompile(`(?i)(?:gst|goods and services tax)\s*(?:number)?\s*[:#]?\s*(\d{2,3}[ -]?\d{3}[ -]?\d{3})\b`),
			group: 1, minDigits: 8, maxDigits: 9,
		},

		// Company name and addresses: labelled lines.
		{
			name: "business_name_line", typ: facttype.BusinessName,
			re:    regexp.MustCompile(`(?im)^\s*(?:company|business|organisation|organization|legal|trading)\s+name\s*[:\-]\s*(\S[^\n]*)$`),
			group: 1, minLen: 2, maxLen: 120,
		},
		{
			name: "postal_address_line", typ: facttype.AddressPostal,
			re:    regexp.MustCompile(`(?im)^\s*(?:postal|mailing)\s+address\s*[:\-]\s*(\S[^\n]*)$`),
			group: 1, minLen: 5, maxLen: 200,
		},
		{
			name: "business_address_line", typ: facttype.AddressBusiness,
			re:    regexp.MustCompile(`(?im)^\s*(?:(?:business|physical|street|registered)\s+)?address\s*[:\-]\s*(\S[^\n]*)$`),
			group: 1, minLen: 5, maxLen: 200,
		},

		// Contact details.
		{
			name: "email", typ: facttype.ContactEmail,
			re: regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
		},
		{
			name: "phone_labelled", typ: facttype.ContactPhone,
			re:    regexp.MustCompile(`(?i)(?:phone|telephone|tel|mobile)\s*(?:number)?\s*[:\-]?\s*((?:\+?6[14]|0)[\d ()-]{6,12}\d)`),
			group: 1, minDigits: 8, maxDigits: 12,
		},
		{
			// NZ mobile shape: leading 02x, then two digit groups.
			name: "phone_mobile_shape", typ: facttype.ContactPhone,
			re:    regexp.MustCompile(`\b(02\d{1,2}[ -]?\d{3,4}[ -]?\d{3,4})\b`),
			group: 1, minDigits: 9, maxDigits: 11,
		},
		{
			name: "phone_landline_shape", typ: facttype.ContactPhone,
			re:    regexp.MustCompile(`\b(\(?0[3-9]\)?[ -]?\d{3}[ -]?\d{4})\b`),
			group: 1, minDigits: 8, maxDigits: 9,
		},
		{
			name: "phone_intl_shape", typ: facttype.ContactPhone,
			re:    regexp.MustCompile(`(\+6[14][ -]?\(?\d{1,2}\)?[ -]?\d{3,4}[ -]?\d{3,4})\b`),
			group: 1, minDigits: 9, maxDigits: 12,
		},
		{
			name: "website", typ: facttype.ContactWebsite,
			re:    regexp.MustCompile(`(?i)\b((?:https?://|www\.)[^\s<>"')\]]+)`),
			group: 1, minLen: 8, maxLen: 200,
		},

		// Financials: currency token near financial keywords.
		{
			name: "turnover_labelled", typ: facttype.AnnualTurnover,
			re:    regexp.MustCompile(`(?i)(?:annual\s+turnover|annual\s+revenue|annual\s+income|yearly\s+revenue|turnover|revenue)\s*(?:of)?\s*[:\-]?\s*\$?\s?([\d,]+(?:\.\d+)?\s?[KMBkmb]?)\b`),
			group: 1, minDigits: 3,
		},
		{
			name: "profit_labelled", typ: facttype.Profit,
			re:    regexp.MustCompile(`(?i)(?:net\s+profit|profit|net\s+income|surplus)\s*(?:of)?\s*[:\-]?\s*\$?\s?([\d,]+(?:\.\d+)?\s?[KMBkmb]?)\b`),
			group: 1, minDigits: 3,
		},
		{
			name: "assets_labelled", typ: facttype.Assets,
			re:    regexp.MustCompile(`(?i)(?:total\s+assets|assets)\s*(?:of)?\s*[:\-]?\s*\$?\s?([\d,]+(?:\.\d+)?\s?[KMBkmb]?)\b`),
			group: 1, minDigits: 3,
		},
		{
			name: "employees_labelled", typ: facttype.EmployeesCount,
			re:    regexp.MustCompile(`(?i)(?:number\s+of\s+employees|employees|staff)\s*[:\-]?\s*(\d{1,6})\b`),
			group: 1, minDigits: 1, maxDigits: 6,
		},

		// Insurance cover amounts.
		{
			name: "public_liability_labelled", typ: facttype.PublicLiability,
			re:    regexp.MustCompile(`(?i)(?:public\s+liability|general\s+liability)\s*(?:insurance|cover|coverage)?\s*(?:of)?\s*[:\-]?\s*\$?\s?([\d,]+(?:\.\d+)?\s?[KMBkmb]?)\b`),
			group: 1, minDigits: 4,
		},
		{
			name: "insured_for", typ: facttype.PublicLiability,
			re:    regexp.MustCompile(`(?i)insured\s+for\s*\$?\s?([\d,]+(?:\.\d+)?\s?[KMBkmb]?)\b`),
			group: 1, minDigits: 4,
		},
		{
			name: "prof_indemnity_labelled", typ: facttype.ProfIndemnity,
			re:    regexp.MustCompile(`(?i)(?:professional\s+indemnity|pi\s+insurance)\s*(?:insurance|cover|coverage)?\s*(?:of)?\s*[:\-]?\s*\$?\s?([\d,]+(?:\.\d+)?\s?[KMBkmb]?)\b`),
			group: 1, minDigits: 4,
		},

		// Certifications and licenses: multi-valued. The colon form takes the
		// text after the label; the line form keeps the whole line for entries
		// like "Class 4 License" where the keyword trails the name.
		{
			name: "certification_labelled", typ: facttype.Certification,
			re:    regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?(?:licen[cs]e|permit|certification|accreditation|certified|accredited)\s*[:\-]\s*(\S[^\n]*)$`),
			group: 1, minLen: 4, maxLen: 200,
		},
		{
			name: "certification_line", typ: facttype.Certification,
			re:    regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?([^\n:]{0,80}\b(?:licen[cs]e[sd]?|permit|certification|accreditation)\b[^\n:]{0,80})[ \t]*$`),
			group: 1, minLen: 8, maxLen: 200,
		},

		// Past projects: multi-valued.
		{
			name: "experience_labelled", typ: facttype.Experience,
			re:    regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?(?:project|completed|delivered)\s*[:\-]\s*(\S[^\n]*)$`),
			group: 1, minLen: 10, maxLen: 300,
		},

		// People: multi-valued.
		{
			name: "team_contact_labelled", typ: facttype.TeamContact,
			re:    regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?(?:contact\s+person|project\s+manager|director|ceo)\s*[:\-]\s*([A-Z][A-Za-z .'-]{2,60})\s*$`),
			group: 1, minLen: 3, maxLen: 80,
		},
		{
			name: "team_contact_role_suffix", typ: facttype.TeamContact,
			re:    regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+)\s*[,(-]\s*(?:Director|Manager|CEO|Project Manager|Owner)\b`),
			group: 1, minLen: 3, maxLen: 80,
		},
	}
}
