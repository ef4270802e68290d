package harness

// TraceEvent is one line of a scenario trace. Most are session events; the
// harness adds its own "error" and "unload" entries for step outcomes.
type TraceEvent struct {
	Type string `json:"type"`
	// At is milliseconds on the fake clock since Epoch.
	At   int64                  `json:"at"`
	Data map[string]interface{} `json:"data,omitempty"`
}

const (
	TraceError  = "error"  // a step returned an error; data.code holds its code
	TraceUnload = "unload" // the unload handler ran; data holds its result
)

// Result is what a scenario run produced. Pass is false as soon as one
// step expectation or assertion fails; Errors lists every failure.
type Result struct {
	Pass      bool         `json:"pass"`
	Trace     []TraceEvent `json:"trace"`
	Errors    []string     `json:"errors,omitempty"`
	FinalKey  string       `json:"final_key"`
	FinalStep int          `json:"final_step"`
}

func newResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

func (r *Result) fail(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

func (r *Result) record(typ string, at int64, data map[string]interface{}) {
	r.Trace = append(r.Trace, TraceEvent{Type: typ, At: at, Data: data})
}
