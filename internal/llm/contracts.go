package llm

import "context"

// Field is one extracted field entry in the model's reply payload.
// Everything except the name is optional; the prompt asks the model to
// carry a reason whenever confidence is low.
type Field struct {
	FieldName  string   `json:"field_name"`
	Value      *string  `json:"value,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	SourceText *string  `json:"source_text,omitempty"`
	Reason     *string  `json:"reason,omitempty"`
	Language   *string  `json:"language,omitempty"`
}

// Extraction is the structured payload we want from the model for one
// document.
type Extraction struct {
	FullText        string  `json:"full_text,omitempty"`
	ExtractedFields []Field `json:"extracted_fields"`
}

// Caller issues one complete inference call for one document, with all
// transport-level retries applied inside. It is the interface the
// extraction pipeline depends on.
type Caller interface {
	Call(ctx context.Context, image []byte, contentType, instruction string) (string, error)
}
