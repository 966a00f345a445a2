package xen

// Evaluator is the Evaluator Port of spec §4.7: the contract a host
// implements so CMD text means something. The Channel knows nothing about
// the host language; swapping the Evaluator retargets the core entirely.
type Evaluator interface {
	// Evaluate compiles and runs text in the host's evaluation
	// environment. It must capture the host's own evaluation errors and
	// return them rather than panicking.
	Evaluate(text string) (value interface{}, err error)

	// Stringify converts a value Evaluate returned into the text placed
	// in the OK reply. Implementations should round-trip full precision
	// for floating point and a canonical representation for void/empty.
	Stringify(value interface{}) string
}
