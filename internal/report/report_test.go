package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputFormatYAML, "yaml": OutputFormatYAML, "json": OutputFormatJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestOutputTo(t *testing.T) {
	b := Book{BookID: "links", Chapters: []Chapter{{ID: "c1", State: StatePersisted, RatioPercent: 12.5}}}

	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatJSON, b); err != nil {
		t.Fatal(err)
	}
	var decoded Book
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded.Chapters[0].State != StatePersisted {
		t.Errorf("json output = %s", buf.String())
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatYAML, b); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "book_id: links") || !strings.Contains(buf.String(), "state: persisted") {
		t.Errorf("yaml output = %s", buf.String())
	}

	if err := OutputTo(&buf, "xml", b); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestTally(t *testing.T) {
	b := Book{Chapters: []Chapter{
		{State: StatePersisted}, {State: StatePersisted}, {State: StateSkipped}, {State: StateFailed},
	}}
	b.Tally()
	if b.Persisted != 2 || b.Skipped != 1 || b.Failed != 1 {
		t.Errorf("Tally() = %d/%d/%d", b.Persisted, b.Skipped, b.Failed)
	}
	if !StateSkipped.Terminal() || StateAnalyzing.Terminal() {
		t.Error("Terminal() wrong")
	}
}
