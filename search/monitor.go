package search

import "github.com/poiesic/docqa/vectorstore"

// QueryMonitor provides hooks to observe the answer process.
// Implement this interface to inspect intermediate results.
type QueryMonitor interface {
	Start(question string)
	AfterEmbedding(vector []float32)
	AfterRetrieval(matches []vectorstore.Match)
	SkippedGeneration()
	Finish(answer *Answer)
}

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                       {}
func (n *noopMonitor) AfterEmbedding(_ []float32)           {}
func (n *noopMonitor) AfterRetrieval(_ []vectorstore.Match) {}
func (n *noopMonitor) SkippedGeneration()                   {}
func (n *noopMonitor) Finish(_ *Answer)                     {}
