package notify

import (
	"strconv"
	"strings"
	"time"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/headermap"
	"inquirysync/internal/core/record"
)

// PerCategory is the default number of records listed per category
const PerCategory = 5

// TestSubject heads the notify-test message
const TestSubject = "[CCTV 알림 시스템 테스트]"

const stampLayout = "2006-01-02 15:04:05"

// Formatter renders batches as plain text
type Formatter struct {
	Table        *category.Table
	PerCategory  int
	DashboardURL string
	Location     *time.Location
}

// Subject is a one line title for b
func (f Formatter) Subject(b Batch) string {
	return "[신규 문의 알림] " + strconv.Itoa(b.Total()) + "건"
}

// Format renders the full batch message
func (f Formatter) Format(b Batch) string {
	per := f.PerCategory
	if per <= 0 {
		per = PerCategory
	}
	var sb strings.Builder
	sb.WriteString("🔔 새로운 문의가 " + strconv.Itoa(b.Total()) + "건 접수되었습니다!\n")
	sb.WriteString("📅 시간: " + f.stamp(b.At) + "\n\n")

	for _, s := range b.Summaries {
		if s.NewRecords == 0 {
			continue
		}
		sb.WriteString("【" + f.display(s.Category) + "】 - " + strconv.Itoa(s.NewRecords) + "건\n")
		shown := s.Latest
		if len(shown) > per {
			shown = shown[len(shown)-per:]
		}
		for i, r := range shown {
			sb.WriteString("  " + strconv.Itoa(i+1) + ". " + r.Name + " (" + FormatPhone(r.Phone) + ")")
			if label, v := Extra(r); v != "" {
				sb.WriteString(" | " + label + ": " + v)
			}
			sb.WriteByte('\n')
		}
		if rest := s.NewRecords - len(shown); rest > 0 {
			sb.WriteString("  ... 외 " + strconv.Itoa(rest) + "건\n")
		}
		sb.WriteByte('\n')
	}

	if f.DashboardURL != "" {
		sb.WriteString("📊 대시보드: " + f.DashboardURL + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Record renders one record as a standalone message, used by channels that
// announce records one at a time
func (f Formatter) Record(r record.Record) string {
	var sb strings.Builder
	if r.Category == category.CareonApplication {
		sb.WriteString("[케어온 신규 신청] 🏠\n\n케어온 신청이 접수되었습니다.\n\n")
		sb.WriteString("📋 신청 정보\n")
		line(&sb, "신청일시", r.Field(headermap.ApplicationDatetime))
		line(&sb, "고객명", r.Name)
		line(&sb, "연락처", FormatPhone(r.Phone))
		sb.WriteString("\n🏢 설치 정보\n")
		line(&sb, "설치장소", r.Field(headermap.InstallationLocation))
		line(&sb, "주소", r.Field(headermap.Address))
		line(&sb, "설치대수", r.Field(headermap.InstallationCount))
		sb.WriteString("\n⚡ 빠른 상담 진행 부탁드립니다.")
		return sb.String()
	}
	sb.WriteString("[CCTV 신규 문의 접수] 🔥\n\n" + f.display(r.Category) + " 문의가 접수되었습니다.\n\n")
	sb.WriteString("📋 기본 정보\n")
	line(&sb, "문의일", r.Field(headermap.EntryDate))
	line(&sb, "문의처", r.Field(headermap.InquirySource))
	line(&sb, "채널", r.Field(headermap.Channel))
	line(&sb, "지역", r.Field(headermap.Region))
	sb.WriteString("\n👤 고객 정보\n")
	line(&sb, "이름", r.Name)
	line(&sb, "연락처", FormatPhone(r.Phone))
	line(&sb, "요청사항", r.Field(headermap.ConsultationRequest))
	sb.WriteString("\n💼 상담 내용\n")
	line(&sb, "형태", r.Field(headermap.FormType))
	line(&sb, "내용", r.Field(headermap.ConsultationContent))
	sb.WriteString("\n⚡ 즉시 확인하여 빠른 대응 부탁드립니다.")
	return sb.String()
}

// TestMessage is the body notify-test sends
func TestMessage(at time.Time) string {
	return TestSubject + " 🧪\n\n알림 시스템이 정상적으로 작동합니다.\n\n" +
		"• 테스트 시간: " + at.Format(stampLayout) + "\n• 상태: 정상 작동"
}

// FormatPhone renders 11 digits starting 010 as 3-4-4 and 10 digits as 3-3-4;
// anything else is returned unchanged
func FormatPhone(digits string) string {
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "010"):
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:]
	case len(digits) == 10:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	}
	return digits
}

// Extra is the one field shown next to a record in the batch list
func Extra(r record.Record) (label, value string) {
	if r.Category == category.CareonApplication {
		return "설치장소", r.Field(headermap.InstallationLocation)
	}
	return "지역", r.Field(headermap.Region)
}

func (f Formatter) display(c category.Category) string {
	if f.Table != nil {
		if s, ok := f.Table.Get(c); ok && s.Display != "" {
			return s.Display
		}
	}
	return c.String()
}

func (f Formatter) stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	if f.Location != nil {
		t = t.In(f.Location)
	}
	return t.Format(stampLayout)
}

func line(sb *strings.Builder, label, v string) {
	if v == "" {
		v = "N/A"
	}
	sb.WriteString("• " + label + ": " + v + "\n")
}
