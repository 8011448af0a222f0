package retrieval

import (
	"bytes"
	"strings"
	"testing"

	"github.com/poiesic/vortex/core"
	"github.com/stretchr/testify/assert"
)

func TestTextMonitor(t *testing.T) {
	var buf bytes.Buffer
	monitor := NewTextMonitor(&buf)

	meta := core.SourceMetadata{Link: "https://example.org/manifesto", Name: "Manifesto", PublicationDate: core.UnknownDate}
	monitor.Start(core.NewRetrievalQuery("How much are they?", core.Turn{Role: core.RoleHuman, Text: "Fees?"}))
	monitor.AfterCondense("What are the tuition fees?")
	monitor.AfterRetrieve([]core.Passage{
		{Text: "Tuition fees will be scrapped.", Metadata: meta, Score: 0.9},
		{Text: "Homes for everyone.", Metadata: meta, Score: 0.1},
	})
	monitor.Finish(&Answer{Text: "Scrapped.", Sources: []core.SourceMetadata{meta, meta}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "question: How much are they?", lines[0])
	assert.Equal(t, "prior turns: 1  k: 4  fetchK: 20  lambda: 0.50  temperature: 0.70", lines[1])
	assert.Equal(t, "standalone question: What are the tuition fees?", lines[2])
	assert.Equal(t, "retrieved 2 passages", lines[3])
	assert.Equal(t, "* 1. [0.900] Manifesto (1900-01-01) https://example.org/manifesto", lines[4])
	assert.Equal(t, "  2. [0.100] Manifesto (1900-01-01) https://example.org/manifesto", lines[5])
	assert.Equal(t, "answer: 9 characters, 2 sources", lines[6])
}
