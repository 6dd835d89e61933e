package model

// StoppingCriteria halts decoding early when the tail of the generated token
// stream exactly matches one of a fixed set of stop sequences. Each stop
// sequence is a short list of token identifiers marking a role boundary.
type StoppingCriteria struct {
	Stops [][]int32
}

// DefaultStoppingCriteria matches the "###" role-boundary markers of the
// conversation template: token 835 ("###") and the pair 2277, 29937 ("## #").
func DefaultStoppingCriteria() StoppingCriteria {
	return StoppingCriteria{
		Stops: [][]int32{
			{835},
			{2277, 29937},
		},
	}
}

// Match reports whether the tail of generated equals any configured stop
// sequence.
func (c StoppingCriteria) Match(generated []int32) bool {
	for _, stop := range c.Stops {
		if len(stop) == 0 || len(stop) > len(generated) {
			continue
		}
		tail := generated[len(generated)-len(stop):]
		matched := true
		for i := range stop {
			if tail[i] != stop[i] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
