package poll

// QuestionSpec is a question definition as submitted by an admin, before validation.
type QuestionSpec struct {
	Text     string   `json:"question_text" validate:"required,max=1000"`
	Type     string   `json:"question_type" validate:"required"`
	Options  []string `json:"options,omitempty" validate:"omitempty,max=50,dive,required,max=200"`
	ScaleMin *int     `json:"scale_min,omitempty"`
	ScaleMax *int     `json:"scale_max,omitempty"`
}

type SessionSpec struct {
	Name      string         `json:"poll_name" validate:"max=200"`
	Questions []QuestionSpec `json:"questions" validate:"required,min=1,max=200,dive"`
}
