package decoder

// token is one active hypothesis in the beam: a composed search state, its
// accumulated cost, and the head of its output-label history.
type token struct {
	state  State
	cost   float32
	olabel *olabelNode
}
