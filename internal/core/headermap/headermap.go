// Package headermap resolves free text sheet headers to canonical field names.
//
// Precedence per header, first hit wins:
// 1 the static synonym table
// 2 the advisory mapping supplied by the classifier
// 3 a slug of the header
package headermap

import (
	"inquirysync/internal/core/normalize"
)

// Canonical field names shared by every category
const (
	No                   = "no"
	EntryDate            = "entry_date"
	Name                 = "name"
	Phone                = "phone"
	Email                = "email"
	Address              = "address"
	Region               = "region"
	InquirySource        = "inquiry_source"
	Channel              = "channel"
	FormType             = "form_type"
	ConsultationContent  = "consultation_content"
	ConsultationRequest  = "consultation_request"
	FirstCall            = "first_call"
	Notes                = "notes"
	InstallationLocation = "installation_location"
	InstallationSchedule = "installation_schedule"
	InstallationCount    = "installation_count"
	ApplicationDatetime  = "application_datetime"
	ServiceType          = "service_type"
	PrivacyConsent       = "privacy_consent"
)

// synonyms is keyed by the normalize.Header form of each header
var synonyms = map[string]string{
	"NO": No, "no": No, "번호": No, "순번": No,

	"인입날짜": EntryDate, "날짜": EntryDate, "접수일": EntryDate, "등록일": EntryDate,

	"문의": InquirySource, "문의처": InquirySource, "접수처": InquirySource,

	"채널": Channel, "유입채널": Channel, "경로": Channel,

	"지역": Region, "지역명": Region, "시도": Region,

	"형태": FormType, "폼타입": FormType, "문의형태": FormType,

	"상담내용(EA)": ConsultationContent, "상담내용": ConsultationContent, "내용": ConsultationContent,

	"상담요청": ConsultationRequest, "요청사항": ConsultationRequest,

	"전화번호": Phone, "연락처": Phone, "휴대폰": Phone, "핸드폰": Phone,

	"이름": Name, "성명": Name, "고객명": Name,

	"1차콜": FirstCall, "통화결과": FirstCall, "콜결과": FirstCall,

	"비고": Notes, "메모": Notes, "참고사항": Notes,

	"이메일": Email,
	"주소":  Address,

	// installation application sheets
	"설치지역":   InstallationLocation,
	"설치장소":   InstallationLocation,
	"설치일정":   InstallationSchedule,
	"설치대수":   InstallationCount,
	"신청일시":   ApplicationDatetime,
	"서비스":    ServiceType,
	"개인정보동의": PrivacyConsent,
}

// Alternative identity field names a classifier may answer with
var (
	NameAliases  = []string{Name, "customer_name"}
	PhoneAliases = []string{Phone, "phone_number"}
)

// Entry is one resolved header
type Entry struct {
	Header string // as it appeared in the sheet
	Field  string
}

// Mapping resolves every header of one sheet, in sheet column order
type Mapping struct {
	entries  []Entry
	byField  map[string]int    // canonical field -> first column carrying it
	byHeader map[string]string // original header -> field
}

// Static reports the synonym table entry for header, if any
func Static(header string) (string, bool) {
	f, ok := synonyms[normalize.Header(header)]
	return f, ok
}

// Map resolves headers; advisory may be nil. Every header gets exactly one field.
func Map(headers []string, advisory map[string]string) Mapping {
	m := Mapping{
		entries:  make([]Entry, len(headers)),
		byField:  make(map[string]int, len(headers)),
		byHeader: make(map[string]string, len(headers)),
	}
	for i, h := range headers {
		f := resolve(h, advisory)
		m.entries[i] = Entry{Header: h, Field: f}
		m.byHeader[h] = f
		if _, seen := m.byField[f]; !seen {
			m.byField[f] = i
		}
	}
	return m
}

func resolve(h string, advisory map[string]string) string {
	if f, ok := Static(h); ok {
		return f
	}
	if f, ok := advisory[h]; ok && f != "" {
		return f
	}
	if f, ok := advisory[normalize.Header(h)]; ok && f != "" {
		return f
	}
	return normalize.Slug(h)
}

// Entries returns the resolved headers in column order
func (m Mapping) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len is the number of mapped headers
func (m Mapping) Len() int { return len(m.entries) }

// Field returns the canonical field of column i
func (m Mapping) Field(i int) string {
	if i < 0 || i >= len(m.entries) {
		return ""
	}
	return m.entries[i].Field
}

// Columns returns every column index resolving to field, in column order
func (m Mapping) Columns(field string) []int {
	var out []int
	for i, e := range m.entries {
		if e.Field == field {
			out = append(out, i)
		}
	}
	return out
}

// FieldOf returns the field an original header resolved to
func (m Mapping) FieldOf(header string) (string, bool) {
	f, ok := m.byHeader[header]
	return f, ok
}

// Has reports whether some header resolves to field
func (m Mapping) Has(field string) bool {
	_, ok := m.byField[field]
	return ok
}

// HasIdentity reports whether some header resolves to a name field and some to a phone field
func (m Mapping) HasIdentity() bool {
	return m.hasAny(NameAliases) && m.hasAny(PhoneAliases)
}

func (m Mapping) hasAny(fields []string) bool {
	for _, f := range fields {
		if m.Has(f) {
			return true
		}
	}
	return false
}
