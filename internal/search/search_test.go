package search

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return m
}

var jobFields = []string{"job_id", "project_name", "received_by", "end_user"}

func TestSoftDelete(t *testing.T) {
	tests := []struct {
		doc  string
		want bool
	}{
		{`{"is_active": true}`, true},
		{`{}`, true},
		{`{"is_active": null}`, true},
		{`{"is_active": false}`, false},
		{`{"is_active": "false"}`, false},
	}
	p := SoftDelete()
	for _, tt := range tests {
		if got := p.Match(decode(t, tt.doc)); got != tt.want {
			t.Errorf("SoftDelete().Match(%s) = %v, want %v", tt.doc, got, tt.want)
		}
	}
}

func TestBuildFilter_TextSearch(t *testing.T) {
	docs := map[string]string{
		"match job_id":      `{"job_id": "GRIPCO-01", "project_name": "Pipe"}`,
		"match project":     `{"job_id": "J-2", "project_name": "gripco expansion"}`,
		"match received_by": `{"job_id": "J-3", "received_by": "GripCo desk"}`,
		"match end_user":    `{"job_id": "J-4", "end_user": "xGRIPCOx"}`,
		"no match":          `{"job_id": "J-5", "project_name": "Other"}`,
		"inactive match":    `{"job_id": "GRIPCO-9", "is_active": false}`,
		"client_name only":  `{"job_id": "J-6", "client_name": "GRIPCO"}`,
		"explicitly active": `{"job_id": "J-7", "end_user": "gripco", "is_active": true}`,
		"non-string field":  `{"job_id": 12, "project_name": 7}`,
	}
	want := map[string]bool{
		"match job_id":      true,
		"match project":     true,
		"match received_by": true,
		"match end_user":    true,
		"explicitly active": true,
	}

	p := BuildFilter("GRIPCO", true, jobFields...)
	for name, doc := range docs {
		if got := p.Match(decode(t, doc)); got != want[name] {
			t.Errorf("%s: match = %v, want %v", name, got, want[name])
		}
	}
}

func TestBuildFilter_Idempotent(t *testing.T) {
	a := BuildFilter("abc", true, jobFields...)
	b := BuildFilter("abc", true, jobFields...)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two builds with identical input differ:\n%#v\n%#v", a, b)
	}

	doc := decode(t, `{"job_id": "xABCx"}`)
	for i := 0; i < 3; i++ {
		if !a.Match(doc) {
			t.Fatalf("iteration %d: predicate stopped matching", i)
		}
	}
}

func TestBuildFilter_BlankQueryKeepsSoftDelete(t *testing.T) {
	p := BuildFilter("   ", true, jobFields...)
	if !p.Match(decode(t, `{"job_id": "J-1"}`)) {
		t.Fatal("blank query should match active documents")
	}
	if p.Match(decode(t, `{"job_id": "J-1", "is_active": false}`)) {
		t.Fatal("blank query must still exclude inactive documents")
	}

	if _, ok := BuildFilter("", false).(All); !ok {
		t.Fatal("no constraints should collapse to All")
	}
}

func TestFilter_Related(t *testing.T) {
	f := Filter{
		Query:      "J-2024",
		ActiveOnly: true,
		Fields:     []string{"item_no"},
		Related:    []Predicate{RefIn{Field: "job_id", Keys: []string{"65a1f0c2b4d3e2a1f0c2b4d3"}}},
	}
	p := f.Build()

	if !p.Match(decode(t, `{"item_no": "X-1", "job_id": {"$oid": "65a1f0c2b4d3e2a1f0c2b4d3"}}`)) {
		t.Error("related predicate should widen the text match")
	}
	if p.Match(decode(t, `{"item_no": "X-1", "job_id": "other"}`)) {
		t.Error("unrelated document matched")
	}
}

func TestEq_NormalizesNumbers(t *testing.T) {
	if !(Eq{Field: "n", Value: 3}).Match(decode(t, `{"n": 3}`)) {
		t.Fatal("int value should equal decoded float64")
	}
}

func TestElemMatch(t *testing.T) {
	doc := decode(t, `{"request_items": [
		{"request_id": "L-1", "specimen_oids": []},
		{"request_id": {"$oid": "65a1f0c2b4d3e2a1f0c2b4d3"}}
	]}`)

	hit := ElemMatch{Field: "request_items", Where: RefIn{Field: "request_id", Keys: []string{"65a1f0c2b4d3e2a1f0c2b4d3"}}}
	if !hit.Match(doc) {
		t.Error("expected native element reference to match")
	}
	miss := ElemMatch{Field: "request_items", Where: RefIn{Field: "request_id", Keys: []string{"L-2"}}}
	if miss.Match(doc) {
		t.Error("unexpected match")
	}
	if hit.Match(decode(t, `{"request_items": "oops"}`)) {
		t.Error("non-array field must not match")
	}
}

func TestEnvelope_Boundaries(t *testing.T) {
	tests := []struct {
		name         string
		page         int
		count        int
		wantNext     *int
		wantPrevious *int
	}{
		{name: "first of three", page: 1, count: 41, wantNext: intp(2), wantPrevious: nil},
		{name: "second is last non-empty page with 20", page: 2, count: 40, wantNext: nil, wantPrevious: intp(1)},
		{name: "middle", page: 2, count: 41, wantNext: intp(3), wantPrevious: intp(1)},
		{name: "last partial", page: 3, count: 41, wantNext: nil, wantPrevious: intp(2)},
		{name: "empty", page: 1, count: 0, wantNext: nil, wantPrevious: nil},
		{name: "exact single page", page: 1, count: 20, wantNext: nil, wantPrevious: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := NewEnvelope[int](NewPage(tt.page, 20), tt.count, nil)
			if !reflect.DeepEqual(env.Next, tt.wantNext) {
				t.Errorf("next = %v, want %v", deref(env.Next), deref(tt.wantNext))
			}
			if !reflect.DeepEqual(env.Previous, tt.wantPrevious) {
				t.Errorf("previous = %v, want %v", deref(env.Previous), deref(tt.wantPrevious))
			}
			if env.Results == nil {
				t.Error("results must encode as [] not null")
			}
		})
	}
}

func TestEnvelope_JSONShape(t *testing.T) {
	env := NewEnvelope(NewPage(1, 20), 41, []string{"a"})
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"results":["a"],"count":41,"next":2,"previous":null}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestNewPage_Clamps(t *testing.T) {
	p := NewPage(0, 0)
	if p.Number != 1 || p.Size != 1 || p.Skip() != 0 {
		t.Fatalf("unexpected page %+v", p)
	}
	if NewPage(3, 10).Skip() != 20 {
		t.Fatal("skip should be (page-1)*size")
	}
}

func intp(n int) *int { return &n }

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
