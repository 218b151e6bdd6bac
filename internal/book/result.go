package book

// ChapterResult is everything produced for one chapter. It is handed to
// sinks only once the chapter reaches its persisted state.
type ChapterResult struct {
	RunID         string         `json:"run_id,omitempty"`
	Chapter       Chapter        `json:"chapter"`
	Category      Category       `json:"category"`
	Summary       string         `json:"summary"`
	Analysis      string         `json:"analysis"`
	Extraction    Extraction     `json:"extraction"`
	Context       RollingContext `json:"context"`
	OriginalWords int            `json:"original_words"`
	SummaryWords  int            `json:"summary_words"`
	TargetWords   int            `json:"target_words"`
	Segments      int            `json:"segments"`
}

// Ratio is summary words over original words.
func (r ChapterResult) Ratio() float64 {
	if r.OriginalWords == 0 {
		return 0
	}
	return float64(r.SummaryWords) / float64(r.OriginalWords)
}
