package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/sheet"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/validate"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Options configures the model classifier
type Options struct {
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	MaxSampleRows int
}

const (
	defaultModel     = string(anthropic.ModelClaudeSonnet4_5)
	defaultMaxSample = 5
	maxTokens        = 1000
	parseConfidence  = 0.5
)

// messages is the SDK surface in use
type messages interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Model asks a Claude model to classify the sheet
type Model struct {
	msgs     messages
	opts     Options
	fallback Heuristic
	log      logger.Logger
}

// answer is the JSON object the prompt asks for
type answer struct {
	InquiryType      string            `json:"inquiry_type" validate:"required,oneof=estimate consultation inquiry cctv_management careon_application"`
	Confidence       float64           `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning        string            `json:"reasoning"`
	SuggestedMapping map[string]string `json:"suggested_mapping"`
}

// NewModel builds the SDK client from o
func NewModel(o Options, tab *category.Table) *Model {
	reqOpts := []option.RequestOption{option.WithAPIKey(o.APIKey)}
	if o.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.Timeout))
	}
	if o.MaxRetries > 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(o.MaxRetries))
	}
	if o.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	return newModel(&client.Messages, o, tab)
}

func newModel(m messages, o Options, tab *category.Table) *Model {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.MaxSampleRows <= 0 {
		o.MaxSampleRows = defaultMaxSample
	}
	return &Model{msgs: m, opts: o, fallback: Heuristic{Table: tab}, log: *logger.Named("classifier")}
}

// Classify never returns an error: transport failures and invalid answers fall back to the heuristic
func (m *Model) Classify(ctx context.Context, sheetName string, headers []string, sample []sheet.RawRow) (Classification, error) {
	if len(sample) > m.opts.MaxSampleRows {
		sample = sample[:m.opts.MaxSampleRows]
	}

	msg, err := m.msgs.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(m.opts.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(0.1),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt(sheetName, sample))),
		},
	})
	if err != nil {
		m.log.Warn().Err(err).Str("sheet", sheetName).Msg("classifier call failed, using heuristic")
		return m.fallback.classify(sheetName), nil
	}

	a, ok := parse(textOf(msg))
	if !ok {
		m.log.Warn().Str("sheet", sheetName).Msg("classifier answer unparseable, defaulting to inquiry")
		return Classification{
			Category:   category.Inquiry,
			Confidence: parseConfidence,
			Reasoning:  "unparseable answer",
			Source:     SourceModel,
		}, nil
	}
	if err := validate.Struct(a); err != nil {
		_, why := validate.FieldAndMessage(err)
		m.log.Warn().Str("sheet", sheetName).Str("reason", why).Msg("classifier answer invalid, using heuristic")
		return m.fallback.classify(sheetName), nil
	}

	c, _ := category.Parse(a.InquiryType)
	out := Classification{
		Category:   c,
		Confidence: a.Confidence,
		Reasoning:  a.Reasoning,
		Advisory:   advisory(a.SuggestedMapping, headers),
		Source:     SourceModel,
	}
	m.log.Info().
		Str("sheet", sheetName).
		Str("category", c.String()).
		Float64("confidence", out.Confidence).
		Int("advisory", len(out.Advisory)).
		Msg("sheet classified")
	return out, nil
}

func textOf(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var b strings.Builder
	for _, blk := range msg.Content {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

var (
	fenced = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	object = regexp.MustCompile(`(?s)\{.*\}`)
)

// parse reads the answer from a fenced json block, else the outermost object
func parse(s string) (answer, bool) {
	var candidates []string
	if m := fenced.FindStringSubmatch(s); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := object.FindString(s); m != "" {
		candidates = append(candidates, m)
	}
	for _, c := range candidates {
		var a answer
		if err := json.Unmarshal([]byte(c), &a); err == nil {
			return a, true
		}
	}
	return answer{}, false
}

// advisory orients the suggested mapping as header -> field. The prompt asks
// for field -> header but models answer both ways, so either side may name
// the header; entries naming no sheet header are dropped.
func advisory(sm map[string]string, headers []string) map[string]string {
	if len(sm) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		known[h] = struct{}{}
	}
	out := make(map[string]string, len(sm))
	for k, v := range sm {
		if _, ok := known[v]; ok {
			out[v] = k
		} else if _, ok := known[k]; ok {
			out[k] = v
		}
	}
	return out
}

func prompt(sheetName string, sample []sheet.RawRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "다음은 CCTV 고객 문의 스프레드시트의 '%s' 시트에서 가져온 샘플입니다.\n\n", sheetName)
	for i, row := range sample {
		fmt.Fprintf(&b, "샘플 %d:\n", i+1)
		for j := 0; j < row.Len(); j++ {
			if c := row.At(j); c.Value != "" {
				fmt.Fprintf(&b, "  %s: %s\n", c.Header, c.Value)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(`시트를 아래 유형 중 하나로 분류하세요.
- estimate: 설치 견적 문의
- consultation: 전화 또는 방문 상담 신청
- inquiry: 기타 일반 문의
- cctv_management: 기존 고객 관리와 유지보수
- careon_application: 케어온 서비스 신청

다음 JSON 형식으로만 답하세요.
` + "```json" + `
{
  "inquiry_type": "유형",
  "confidence": 0.0,
  "reasoning": "근거",
  "suggested_mapping": {"name": "이름 헤더", "phone": "전화번호 헤더", "address": "주소 헤더"}
}
` + "```\n")
	return b.String()
}
