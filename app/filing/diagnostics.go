package filing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNoSectionsFound means the submission has neither xbrl nor document blocks.
	ErrNoSectionsFound = errors.New("no xbrl or document sections found")

	// ErrUnexpectedSplitShape means a heading match produced no item id.
	ErrUnexpectedSplitShape = errors.New("unexpected heading split shape")
)

type DiagnosticKind string

const (
	DiagnosticNoSectionsFound        DiagnosticKind = "no_sections_found"
	DiagnosticUnexpectedSplitShape   DiagnosticKind = "unexpected_split_shape"
	DiagnosticUnexpectedExhibitTitle DiagnosticKind = "unexpected_exhibit_title"
	DiagnosticMissingItemContent     DiagnosticKind = "missing_item_content"
	DiagnosticUnresolvedExhibit      DiagnosticKind = "unresolved_exhibit"

	// Informational: the run recovered or deliberately skipped something.
	DiagnosticSkippedExhibit     DiagnosticKind = "skipped_exhibit"
	DiagnosticRepairedItem       DiagnosticKind = "repaired_item"
	DiagnosticMissingExhibitText DiagnosticKind = "missing_exhibit_text"
)

// Diagnostic records one anomaly found while processing a single filing. None of
// them stop the run.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Subject string         `json:"subject,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", d.Kind, d.Subject, d.Message)
}

// Informational reports whether the diagnostic describes a recovery rather than
// a defect in the output.
func (d Diagnostic) Informational() bool {
	switch d.Kind {
	case DiagnosticSkippedExhibit, DiagnosticRepairedItem, DiagnosticMissingExhibitText:
		return true
	}
	return false
}

func (s *State) report(kind DiagnosticKind, subject, format string, args ...any) {
	d := Diagnostic{
		Kind:    kind,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
	}
	s.Diagnostics = append(s.Diagnostics, d)

	level := slog.LevelWarn
	if d.Informational() {
		level = slog.LevelDebug
	}
	slog.Log(context.Background(), level, d.Message, "filing", s.Link, "kind", string(kind), "subject", subject)
}
