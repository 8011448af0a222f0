package retrieval

import (
	"fmt"
	"io"

	"github.com/poiesic/vortex/core"
)

// Monitor provides hooks to observe the answering process.
// Implement this interface to track intermediate steps and results.
type Monitor interface {
	Start(query core.RetrievalQuery)
	AfterCondense(standalone string)
	AfterRetrieve(passages []core.Passage)
	Finish(answer *Answer)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.RetrievalQuery)    {}
func (n *noopMonitor) AfterCondense(_ string)         {}
func (n *noopMonitor) AfterRetrieve(_ []core.Passage) {}
func (n *noopMonitor) Finish(_ *Answer)               {}

// TextMonitor writes a human-readable trace of each stage to a writer.
// Passages containing every significant word of the question are marked
// as verbatim hits.
type TextMonitor struct {
	w          io.Writer
	standalone string
}

var _ Monitor = (*TextMonitor)(nil)

// NewTextMonitor creates a monitor that writes to w.
func NewTextMonitor(w io.Writer) *TextMonitor {
	return &TextMonitor{w: w}
}

func (m *TextMonitor) Start(query core.RetrievalQuery) {
	fmt.Fprintf(m.w, "question: %s\n", query.Question)
	fmt.Fprintf(m.w, "prior turns: %d  k: %d  fetchK: %d  lambda: %.2f  temperature: %.2f\n",
		len(query.PriorTurns), query.K, query.FetchK, query.DiversityLambda, query.Temperature)
}

func (m *TextMonitor) AfterCondense(standalone string) {
	m.standalone = standalone
	fmt.Fprintf(m.w, "standalone question: %s\n", standalone)
}

func (m *TextMonitor) AfterRetrieve(passages []core.Passage) {
	fmt.Fprintf(m.w, "retrieved %d passages\n", len(passages))
	for i, p := range passages {
		marker := " "
		if containsAllQueryWords(p.Text, m.standalone) {
			marker = "*"
		}
		fmt.Fprintf(m.w, "%s %d. [%.3f] %s (%s) %s\n", marker, i+1, p.Score, p.Metadata.Name, p.Metadata.Date(), p.Metadata.Link)
	}
}

func (m *TextMonitor) Finish(answer *Answer) {
	fmt.Fprintf(m.w, "answer: %d characters, %d sources\n", len(answer.Text), len(answer.Sources))
}
