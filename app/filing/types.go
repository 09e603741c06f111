package filing

import (
	"strings"
)

// Submission is one raw filing as handed over by the fetcher.
type Submission struct {
	Title string // feed entry title, e.g. "8-K - Acme Corp (0000000000) (Filer)"
	Link  string
	Text  string
}

// Item is one finalized disclosure item.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Exhibit is one finalized exhibit. RefersTo is set instead of Body when the
// exhibit was only mentioned by reference to another exhibit.
type Exhibit struct {
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	RefersTo string `json:"refers_to,omitempty"`
}

// Value is the exhibit as the report shows it: the body text or a pointer to the
// exhibit it was resolved against.
func (e Exhibit) Value() string {
	if e.RefersTo != "" {
		return "points at " + e.RefersTo
	}
	return e.Body
}

// Result is the structured output for one filing.
type Result struct {
	Company     string       `json:"company"`
	Link        string       `json:"link"`
	Items       []Item       `json:"items"`
	Signature   string       `json:"signature"`
	Exhibits    []Exhibit    `json:"exhibits"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Item returns the text of the item with the given id.
func (r *Result) Item(id string) (string, bool) {
	id = strings.ToLower(id)
	for _, item := range r.Items {
		if item.ID == id {
			return item.Text, true
		}
	}
	return "", false
}

// Exhibit returns the exhibit with the given short title.
func (r *Result) Exhibit(title string) (Exhibit, bool) {
	for _, exhibit := range r.Exhibits {
		if exhibit.Title == title {
			return exhibit, true
		}
	}
	return Exhibit{}, false
}

// ItemTable maps item ids to their text fragments, keeping first-appearance order.
type ItemTable struct {
	order     []string
	fragments map[string][]string
}

func NewItemTable() *ItemTable {
	return &ItemTable{fragments: make(map[string][]string)}
}

// Seed records id without adding any text.
func (t *ItemTable) Seed(id string) {
	id = strings.ToLower(id)
	if _, ok := t.fragments[id]; ok {
		return
	}
	t.order = append(t.order, id)
	t.fragments[id] = nil
}

func (t *ItemTable) Append(id, fragment string) {
	t.Seed(id)
	id = strings.ToLower(id)
	t.fragments[id] = append(t.fragments[id], fragment)
}

// Set replaces the fragments of an already known id.
func (t *ItemTable) Set(id string, fragments []string) {
	t.Seed(id)
	t.fragments[strings.ToLower(id)] = fragments
}

func (t *ItemTable) Has(id string) bool {
	_, ok := t.fragments[strings.ToLower(id)]
	return ok
}

func (t *ItemTable) Fragments(id string) []string {
	return t.fragments[strings.ToLower(id)]
}

// IDs returns the item ids in first-appearance order.
func (t *ItemTable) IDs() []string {
	return append([]string(nil), t.order...)
}

func (t *ItemTable) Len() int {
	return len(t.order)
}

// Text joins the fragments of id into prose, dropping leading spaces and periods
// left behind by the heading split.
func (t *ItemTable) Text(id string) string {
	text := strings.TrimSpace(strings.Join(t.Fragments(id), " "))
	return strings.TrimLeft(text, " .")
}

// ExhibitMap maps short exhibit titles to their body, keeping insertion order.
type ExhibitMap struct {
	order   []string
	entries map[string]*exhibitEntry
}

type exhibitEntry struct {
	body     strings.Builder
	refersTo string
	expected bool
}

func NewExhibitMap() *ExhibitMap {
	return &ExhibitMap{entries: make(map[string]*exhibitEntry)}
}

// Expect records a title predicted by the exhibit list.
func (m *ExhibitMap) Expect(title string) {
	if _, ok := m.entries[title]; ok {
		return
	}
	m.order = append(m.order, title)
	m.entries[title] = &exhibitEntry{expected: true}
}

// Add records a title found in a document block. It reports false when the title
// was not already known.
func (m *ExhibitMap) Add(title string) bool {
	if _, ok := m.entries[title]; ok {
		return true
	}
	m.order = append(m.order, title)
	m.entries[title] = &exhibitEntry{}
	return false
}

// Expected reports whether title was predicted by the exhibit list.
func (m *ExhibitMap) Expected(title string) bool {
	entry, ok := m.entries[title]
	return ok && entry.expected
}

func (m *ExhibitMap) Has(title string) bool {
	_, ok := m.entries[title]
	return ok
}

// AppendLine adds one body line followed by a single space.
func (m *ExhibitMap) AppendLine(title, line string) {
	entry, ok := m.entries[title]
	if !ok {
		return
	}
	entry.body.WriteString(line)
	entry.body.WriteByte(' ')
}

func (m *ExhibitMap) Body(title string) string {
	if entry, ok := m.entries[title]; ok {
		return entry.body.String()
	}
	return ""
}

// Empty reports whether title has neither body text nor a resolution marker.
func (m *ExhibitMap) Empty(title string) bool {
	entry, ok := m.entries[title]
	if !ok {
		return true
	}
	return entry.body.Len() == 0 && entry.refersTo == ""
}

// PointAt marks title as resolved against target. Targets must be other titles
// that already carry body text.
func (m *ExhibitMap) PointAt(title, target string) bool {
	entry, ok := m.entries[title]
	if !ok || title == target || m.Body(target) == "" {
		return false
	}
	entry.refersTo = target
	return true
}

func (m *ExhibitMap) RefersTo(title string) string {
	if entry, ok := m.entries[title]; ok {
		return entry.refersTo
	}
	return ""
}

// Titles returns the exhibit titles in insertion order.
func (m *ExhibitMap) Titles() []string {
	return append([]string(nil), m.order...)
}

func (m *ExhibitMap) Len() int {
	return len(m.order)
}

// State is everything accumulated while processing one filing. A new State is
// created for every filing and dropped once its Result is built.
type State struct {
	Link        string
	Items       *ItemTable
	Signature   []string
	Exhibits    *ExhibitMap
	Diagnostics []Diagnostic
}

func NewState(link string) *State {
	return &State{
		Link:     link,
		Items:    NewItemTable(),
		Exhibits: NewExhibitMap(),
	}
}

// CompanyName strips the fixed feed boilerplate from an entry title.
func CompanyName(title string) string {
	company := strings.ReplaceAll(title, FilingType+" - ", "")
	return strings.ReplaceAll(company, " (Filer)", "")
}
