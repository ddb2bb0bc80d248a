package search

// Page is a 1-based page request with a fixed size.
type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = 1
	}
	return Page{Number: number, Size: size}
}

func (p Page) Skip() int { return (p.Number - 1) * p.Size }

func (p Page) Limit() int { return p.Size }

// HasNext is derived from the total count, not from how many rows the
// store returned.
func (p Page) HasNext(count int) bool { return p.Number*p.Size < count }

func (p Page) HasPrevious() bool { return p.Number > 1 }

// Envelope is the list response shape shared by every list endpoint.
type Envelope[T any] struct {
	Results  []T  `json:"results"`
	Count    int  `json:"count"`
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
}

func NewEnvelope[T any](p Page, count int, results []T) Envelope[T] {
	if results == nil {
		results = []T{}
	}
	env := Envelope[T]{Results: results, Count: count}
	if p.HasNext(count) {
		n := p.Number + 1
		env.Next = &n
	}
	if p.HasPrevious() {
		n := p.Number - 1
		env.Previous = &n
	}
	return env
}
