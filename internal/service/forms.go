package service

import (
	"strconv"

	"yatube/internal/models"
)

// Field kinds understood by clients rendering a form.
const (
	FieldKindChar     = "char"
	FieldKindChoice   = "choice"
	FieldKindImage    = "image"
	FieldKindPassword = "password"
)

// Choice is one option of a choice field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDescriptor describes one form field, its current value and error.
type FieldDescriptor struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	HelpText string   `json:"help_text,omitempty"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Value    string   `json:"value,omitempty"`
	Choices  []Choice `json:"choices,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// FormDescriptor is what the client needs to render and resubmit a form.
type FormDescriptor struct {
	Fields []FieldDescriptor `json:"fields"`
	Errors map[string]string `json:"errors,omitempty"`
	IsEdit bool              `json:"is_edit,omitempty"`
	PostID uint              `json:"post_id,omitempty"`
}

// Field returns the named field, or nil.
func (f *FormDescriptor) Field(name string) *FieldDescriptor {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

const emptyChoiceLabel = "---------"

// PostFormDescriptor builds the post form with one choice per group.
func PostFormDescriptor(groups []models.Group, values, errs map[string]string) FormDescriptor {
	choices := make([]Choice, 0, len(groups)+1)
	choices = append(choices, Choice{Value: "", Label: emptyChoiceLabel})
	for _, g := range groups {
		choices = append(choices, Choice{Value: strconv.FormatUint(uint64(g.ID), 10), Label: g.String()})
	}

	form := FormDescriptor{
		Fields: []FieldDescriptor{
			{
				Name:     "text",
				Label:    "Текст",
				HelpText: "Введите текст поста",
				Kind:     FieldKindChar,
				Required: true,
			},
			{
				Name:     "group",
				Label:    "Группа",
				HelpText: "Группа, к которой будет относиться пост",
				Kind:     FieldKindChoice,
				Choices:  choices,
			},
			{
				Name:  "image",
				Label: "Картинка",
				Kind:  FieldKindImage,
			},
		},
	}
	fill(&form, values, errs)
	return form
}

// CommentFormDescriptor builds the comment form shown under a post.
func CommentFormDescriptor(values, errs map[string]string) FormDescriptor {
	form := FormDescriptor{
		Fields: []FieldDescriptor{
			{
				Name:     "text",
				Label:    "Текст комментария",
				Kind:     FieldKindChar,
				Required: true,
			},
		},
	}
	fill(&form, values, errs)
	return form
}

// LoginFormDescriptor builds the login form. The password is never echoed.
func LoginFormDescriptor(values, errs map[string]string) FormDescriptor {
	form := FormDescriptor{
		Fields: []FieldDescriptor{
			{Name: "username", Label: "Имя пользователя", Kind: FieldKindChar, Required: true},
			{Name: "password", Label: "Пароль", Kind: FieldKindPassword, Required: true},
		},
	}
	fill(&form, values, errs)
	return form
}

// SignupFormDescriptor builds the registration form.
func SignupFormDescriptor(values, errs map[string]string) FormDescriptor {
	form := FormDescriptor{
		Fields: []FieldDescriptor{
			{Name: "first_name", Label: "Имя", Kind: FieldKindChar},
			{Name: "last_name", Label: "Фамилия", Kind: FieldKindChar},
			{
				Name:     "username",
				Label:    "Имя пользователя",
				HelpText: "Не более 150 символов. Только буквы, цифры и символы @/./+/-/_.",
				Kind:     FieldKindChar,
				Required: true,
			},
			{Name: "email", Label: "Адрес электронной почты", Kind: FieldKindChar},
			{Name: "password", Label: "Пароль", Kind: FieldKindPassword, Required: true},
		},
	}
	fill(&form, values, errs)
	return form
}

// PostValues turns a stored post into form values.
func PostValues(p *models.Post) map[string]string {
	values := map[string]string{"text": p.Text}
	if p.GroupID != nil {
		values["group"] = strconv.FormatUint(uint64(*p.GroupID), 10)
	}
	if p.Image != "" {
		values["image"] = p.Image
	}
	return values
}

func fill(form *FormDescriptor, values, errs map[string]string) {
	for i := range form.Fields {
		f := &form.Fields[i]
		if f.Kind != FieldKindPassword {
			f.Value = values[f.Name]
		}
		f.Error = errs[f.Name]
	}
	if len(errs) > 0 {
		form.Errors = errs
	}
}
