package models

// QueryRequest is the body of POST /hackrx/run.
type QueryRequest struct {
	Documents string   `json:"documents" binding:"required"`
	Questions []string `json:"questions"`
}

// QueryResponse carries one answer per question, in question order.
type QueryResponse struct {
	Answers []string `json:"answers"`
}

// ErrorResponse is returned instead of QueryResponse when a request fails as a whole.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// FetchedDocument is the raw material downloaded for a single request.
type FetchedDocument struct {
	URL         string
	ContentType string
	Kind        Kind
	Data        []byte
}

// Kind is the detected format of a fetched document.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindText Kind = "text"
)

// Ext returns the file extension used when the document is persisted.
func (k Kind) Ext() string {
	switch k {
	case KindHTML:
		return ".html"
	case KindText:
		return ".txt"
	default:
		return ".pdf"
	}
}

// Evaluation is the structured result the LLM produces for one question.
// Justification is a pointer so a missing field can be told apart from an empty one.
type Evaluation struct {
	Decision      string   `json:"decision"`
	Amount        string   `json:"amount,omitempty"`
	Justification *string  `json:"justification,omitempty"`
	Clauses       []string `json:"clauses,omitempty"`
}
