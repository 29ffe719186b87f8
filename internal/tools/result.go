package tools

// Result is the unified return type from tool execution.
type Result struct {
	ForLLM  string `json:"for_llm"`  // content sent to the LLM
	Silent  bool   `json:"silent"`   // suppress user message
	IsError bool   `json:"is_error"` // marks error
	Err     error  `json:"-"`        // internal error (not serialized)

	// StopBatch discards the remaining tool calls of the same batch.
	// Used by delegation: once work is handed off, executing the rest
	// of the batch would race the delegate.
	StopBatch bool `json:"-"`

	// OutputSent marks that the tool already delivered its output to
	// the user (e.g. media sent through the bridge), so the engine
	// should not echo a final text for it.
	OutputSent bool `json:"-"`
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func SilentResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM, Silent: true}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}

func (r *Result) WithStopBatch() *Result {
	r.StopBatch = true
	return r
}
