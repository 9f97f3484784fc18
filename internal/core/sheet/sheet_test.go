package sheet

import (
	"reflect"
	"testing"
	"time"

	perr "inquirysync/internal/platform/errors"
)

func TestShapeFirstRowHeader(t *testing.T) {
	s, err := Shape("9월", [][]string{
		{"이름", "전화번호", "", "비고"},
		{"홍길동", "010-1111-2222", "x", "nan"},
		{"", " ", "None", ""},
		{"김철수", "010-3333-4444"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.HeaderRow != 0 {
		t.Fatalf("HeaderRow = %d", s.HeaderRow)
	}
	if !reflect.DeepEqual(s.Headers, []string{"이름", "전화번호", "Column_3", "비고"}) {
		t.Fatalf("Headers = %q", s.Headers)
	}
	if len(s.Rows) != 2 {
		t.Fatalf("blank row not dropped: %d rows", len(s.Rows))
	}
	if v, _ := s.Rows[0].Get("비고"); v != "" {
		t.Fatalf("sentinel not cleared: %q", v)
	}
	if v, ok := s.Rows[1].Get("비고"); !ok || v != "" {
		t.Fatalf("short row not padded: %q %v", v, ok)
	}
}

func TestShapeTitleRow(t *testing.T) {
	s, err := Shape("케어온", [][]string{
		{"케어온 신청 현황", "", ""},
		{"신청일시", "이름", "연락처"},
		{"2024-09-01 10:00", "박영희", "010-5555-6666", "overflow"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.HeaderRow != 1 || len(s.Rows) != 1 || s.Rows[0].Len() != 3 {
		t.Fatalf("sheet = %+v", s)
	}
}

func TestShapeMismatch(t *testing.T) {
	_, err := Shape("요약", [][]string{{"합계", "100"}, {"평균", "5"}})
	if !perr.IsCode(err, perr.ErrorCodeShape) {
		t.Fatalf("err = %v, want shape", err)
	}
	if e, _ := perr.As(err); e.Field() != "요약" {
		t.Fatalf("field = %q", e.Field())
	}
}

func TestShapeEmpty(t *testing.T) {
	s, err := Shape("빈 시트", nil)
	if err != nil || len(s.Rows) != 0 {
		t.Fatalf("empty sheet = %+v, %v", s, err)
	}
}

func TestRawRow(t *testing.T) {
	r := Row("이름", " 홍길동 ", "연락처", "NaT", "dangling")
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}
	if v, _ := r.Get("이름"); v != "홍길동" {
		t.Fatalf("Get = %q", v)
	}
	if _, ok := r.Get("주소"); ok {
		t.Fatal("missing header reported present")
	}
	if r.At(1).Value != "" || r.At(5) != (Cell{}) {
		t.Fatal("At misbehaves")
	}
	if !reflect.DeepEqual(r.Headers(), []string{"이름", "연락처"}) {
		t.Fatalf("Headers = %q", r.Headers())
	}
}

func TestSelectToday(t *testing.T) {
	now := time.Date(2024, 9, 5, 9, 0, 0, 0, time.UTC)
	careon := func(n string) bool { return n == "케어온" }

	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"iso date", []string{"2024-09-04", "2024-09-05", "케어온"}, []string{"2024-09-05", "케어온"}},
		{"korean date", []string{"9월4일", "9월 5일 문의", "케어온"}, []string{"9월 5일 문의", "케어온"}},
		{"compact", []string{"0904", "0905"}, []string{"0905"}},
		{"short dotted", []string{"9.4", "9.5"}, []string{"9.5"}},
		{"fallback to first", []string{"접수", "보관", "케어온"}, []string{"접수", "케어온"}},
		{"first is keyword sheet", []string{"케어온", "보관"}, []string{"케어온"}},
		{"empty", nil, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectToday(tc.names, now, careon)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("SelectToday(%q) = %q, want %q", tc.names, got, tc.want)
			}
		})
	}
}

func TestTodayPatterns(t *testing.T) {
	got := TodayPatterns(time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC))
	want := []string{"2024-12-25", "2024.12.25", "20241225", "12-25", "12.25", "1225", "12.25", "12-25", "12월25일", "12월 25일"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TodayPatterns = %q", got)
	}
}

func TestWithout(t *testing.T) {
	got := Without([]string{"견적", "Archive", "케어온"}, []string{" archive "})
	if !reflect.DeepEqual(got, []string{"견적", "케어온"}) {
		t.Fatalf("Without = %q", got)
	}
}

func TestCandidates(t *testing.T) {
	values := [][]string{{"Export"}, {"Customer", "", "Mobile"}, {"Lee", "x", "010"}, {"", ""}}
	got := Candidates("web", values)
	if len(got) != 2 {
		t.Fatalf("candidates = %d", len(got))
	}
	if got[0].HeaderRow != 0 || len(got[0].Rows) != 2 {
		t.Fatalf("first candidate %+v", got[0])
	}
	c := got[1]
	if c.HeaderRow != 1 || !reflect.DeepEqual(c.Headers, []string{"Customer", "Column_2", "Mobile"}) || len(c.Rows) != 1 {
		t.Fatalf("second candidate %+v", c)
	}
	if v, _ := c.Rows[0].Get("Mobile"); v != "010" {
		t.Fatalf("mobile = %q", v)
	}
	if len(Candidates("one", [][]string{{"only"}})) != 1 || Candidates("none", nil) != nil {
		t.Fatal("short sheets")
	}
}
