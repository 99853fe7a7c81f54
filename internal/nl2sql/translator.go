package nl2sql

import (
	"context"
	"strings"
)

type Request struct {
	Subject         string `json:"subject"`
	NaturalLanguage string `json:"natural_language"`
}

// Result is the outcome of translating one message. Statement is only set
// when Synthesized is true.
type Result struct {
	Intent      Intent    `json:"intent"`
	Statement   Statement `json:"statement"`
	Synthesized bool      `json:"synthesized"`
	Provider    string    `json:"provider"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// RuleTranslator is the keyword and pattern based translator.
type RuleTranslator struct{}

func NewRuleTranslator() *RuleTranslator { return &RuleTranslator{} }

func (RuleTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	intent := Classify(strings.TrimSpace(req.NaturalLanguage))
	result := Result{Intent: intent, Provider: "rules"}
	if stmt, ok := Synthesize(intent); ok {
		result.Statement = stmt
		result.Synthesized = true
	}
	return result, nil
}
