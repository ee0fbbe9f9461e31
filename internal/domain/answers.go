package domain

// Answer is the validated submission for the current question. It is a
// closed union: exactly ChoiceAnswer or TextAnswer. Raw client input is
// converted to one of these at the transport boundary before it reaches
// the engine.
type Answer interface {
	isAnswer()
}

// ChoiceAnswer selects an option index of a MultipleChoice question.
type ChoiceAnswer int

// TextAnswer is a free-text response.
type TextAnswer string

func (ChoiceAnswer) isAnswer() {}
func (TextAnswer) isAnswer()   {}
