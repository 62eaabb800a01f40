package answer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/llm"
)

// NHSMedicinesURL is the resource link every refusal must include.
const NHSMedicinesURL = "https://www.nhs.uk/medicines/"

const rejectPromptTemplate = `Reject the following question politely. Inform the user that you are a chatbot only capable of answering questions using official NHS guidance on medications, their side effects, interactions, dosage, administration, lifestyle considerations, efficacy and monitoring.
Here is the question:

-------
%s
-------

Use the question to give specific reasons why you are unable to answer.
Always provide this link to the NHS website so they can search for relevant information themselves: %s
If the question is asking for specific medical advice, advise them to speak to a healthcare professional, call 111 for immediate advice or call 999 in an emergency.`

// Rejecter produces the scoped refusal for out-of-domain questions.
type Rejecter struct {
	generator llm.Generator
	logger    *zap.Logger
}

// NewRejecter creates a Rejecter backed by the given generator.
func NewRejecter(generator llm.Generator, logger *zap.Logger) (*Rejecter, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rejecter{generator: generator, logger: logger}, nil
}

// Reject declines the question with question-specific reasons, the NHS
// medicines link and 111/999 signposting.
func (r *Rejecter) Reject(ctx context.Context, question string) (string, error) {
	text, err := r.generator.Complete(ctx, fmt.Sprintf(rejectPromptTemplate, question, NHSMedicinesURL))
	if err != nil {
		return "", fmt.Errorf("generating rejection: %w", err)
	}

	r.logger.Debug("generated rejection", zap.Int("answer_len", len(text)))
	return text, nil
}
