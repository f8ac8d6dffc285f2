package testutil

// FixedEpochGenerator returns the same epoch every time, so the downstream
// queue of a scenario is byte-identical across runs.
//
// Thread-safety: FixedEpochGenerator is stateless and safe for concurrent use.
type FixedEpochGenerator struct {
	epoch string
}

// NewFixedEpochGenerator creates a generator returning epoch.
// If epoch is empty, Generate() returns "test-epoch-default".
func NewFixedEpochGenerator(epoch string) *FixedEpochGenerator {
	if epoch == "" {
		epoch = "test-epoch-default"
	}
	return &FixedEpochGenerator{epoch: epoch}
}

// Generate returns the fixed epoch.
//
// Implements producer.EpochGenerator interface.
func (g *FixedEpochGenerator) Generate() string {
	return g.epoch
}
