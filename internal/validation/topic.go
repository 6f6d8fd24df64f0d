package validation

import (
	"strings"
)

// DefaultRefusal ответ на вопрос с запрещённой темой.
const DefaultRefusal = "Sorry, I cannot answer Java-related questions. Please ask about another language."

// DefaultDenylist темы, на которые бот не отвечает.
var DefaultDenylist = []string{"java"}

// TopicPolicy проверяет текст вопроса на запрещённые темы.
// Тот же список отдаётся клиенту через GET /policy для локальной предпроверки.
type TopicPolicy struct {
	terms   []string
	refusal string
}

// NewTopicPolicy создаёт политику. Пустые термины отбрасываются, регистр не учитывается.
// Пустой список заменяется DefaultDenylist.
func NewTopicPolicy(terms []string, refusal string) *TopicPolicy {
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			normalized = append(normalized, term)
		}
	}
	if len(normalized) == 0 {
		normalized = append(normalized, DefaultDenylist...)
	}
	if refusal == "" {
		refusal = DefaultRefusal
	}
	return &TopicPolicy{terms: normalized, refusal: refusal}
}

// Match возвращает первый найденный запрещённый термин.
func (p *TopicPolicy) Match(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, term := range p.terms {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

// Terms копия списка запрещённых терминов.
func (p *TopicPolicy) Terms() []string {
	out := make([]string, len(p.terms))
	copy(out, p.terms)
	return out
}

// Refusal фиксированный текст отказа.
func (p *TopicPolicy) Refusal() string {
	return p.refusal
}
