package model

// CreateSessionRequest is the payload for opening a new mock test.
type CreateSessionRequest struct {
	Program string `json:"program" binding:"required,program"`
}

// SelectAnswerRequest records the learner's choice for one question.
type SelectAnswerRequest struct {
	Option *int `json:"option" binding:"required,min=0,max=3"`
}

// NavigateRequest moves the learner to a question by position.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// SubmitRequest carries the learner's confirmation of the submit dialog.
// A false Confirm is answered with CONFIRMATION_REQUIRED, not a field error.
type SubmitRequest struct {
	Confirm bool `json:"confirm"`
}

// AttemptListQuery pages the learner's attempt history.
type AttemptListQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}
